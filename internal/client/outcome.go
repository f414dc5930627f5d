// Copyright 2024 LatentFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"errors"
	"fmt"

	"dtest/internal/common"
)

// Kind tags the result of one client call.
type Kind int

const (
	KindOK         Kind = iota // 2xx reply
	KindRejected               // server answered with a non-2xx reply
	KindConnFailed             // dial, I/O, EOF or malformed reply
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindRejected:
		return "rejected"
	case KindConnFailed:
		return "connection-failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// RejectedError is returned when the server refuses an operation.
type RejectedError struct {
	Command string
	Code    int
	Reason  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %03d %s", e.Command, e.Code, e.Reason)
}

// Unwrap lets errors.Is match common.ErrRejected.
func (e *RejectedError) Unwrap() error { return common.ErrRejected }

// ConnError is returned for anything that is not a server verdict.
type ConnError struct {
	Op  string
	Err error
}

func (e *ConnError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

// Is matches common.ErrConnection; Unwrap exposes the cause.
func (e *ConnError) Is(target error) bool { return target == common.ErrConnection }
func (e *ConnError) Unwrap() error        { return e.Err }

// Outcome is the tagged form of a call result that scenarios branch on.
type Outcome struct {
	Kind   Kind
	Code   int    // reply code when Kind is KindRejected
	Reason string // server text or error message
	Err    error
}

// OutcomeOf classifies an error returned by any Client method. Errors that
// did not come from the client (for instance a cancelled context) count as
// connection failures.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Outcome{Kind: KindOK}
	}
	var rej *RejectedError
	if errors.As(err, &rej) {
		return Outcome{Kind: KindRejected, Code: rej.Code, Reason: rej.Reason, Err: err}
	}
	return Outcome{Kind: KindConnFailed, Reason: err.Error(), Err: err}
}

// KindOf is shorthand for OutcomeOf(err).Kind.
func KindOf(err error) Kind { return OutcomeOf(err).Kind }

// IsRejected reports whether err is a server rejection.
func IsRejected(err error) bool { return KindOf(err) == KindRejected }
