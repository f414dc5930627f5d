package fixture

// StandardTracks is the default collection. It deliberately mixes a
// precomposed name (U+00CC) with a decomposed one (I + U+0301) so listings
// cross the normalization boundary.
func StandardTracks() []string {
	return []string{
		"Joe Bloggs/First Album/01:F\u00ccrst track.ogg",
		"Joe Bloggs/First Album/02:Second track.ogg",
		"Joe Bloggs/First Album/03:ThI\u0301rd track.ogg",
		"Joe Bloggs/First Album/04:Fourth track.ogg",
		"Joe Bloggs/First Album/05:Fifth track.ogg",
		"Joe Bloggs/Second Album/01:First track.ogg",
		"Joe Bloggs/Second Album/02:Second track.ogg",
		"Joe Bloggs/Second Album/03:Third track.ogg",
		"Joe Bloggs/Second Album/04:Fourth track.ogg",
		"Joe Bloggs/Second Album/05:Fifth track.ogg",
		"Joe Bloggs/Third Album/01:First_track.ogg",
		"Joe Bloggs/Third Album/02:Second_track.ogg",
		"Joe Bloggs/Third Album/03:Third_track.ogg",
		"Joe Bloggs/Third Album/04:Fourth_track.ogg",
		"Joe Bloggs/Third Album/05:Fifth_track.ogg",
		"Fred Smith/Boring/01:Dull.ogg",
		"Fred Smith/Boring/02:Tedious.ogg",
		"Fred Smith/Boring/03:Drum Solo.ogg",
		"Fred Smith/Boring/04:Yawn.ogg",
		"misc/blahblahblah.ogg",
		"Various/Greatest Hits/01:Jim Whatever - Spong.ogg",
		"Various/Greatest Hits/02:Joe Bloggs - Yadda.ogg",
	}
}

// NoTracks is an empty collection.
func NoTracks() []string { return nil }
