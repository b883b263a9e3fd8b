// Package subsonic is a minimal client for the Subsonic REST API: ping,
// song lookup, search3 and scrobble.
//
//	client, err := subsonic.NewClient(subsonic.Config{
//	    BaseURL:  "https://music.example.com",
//	    Username: "listener",
//	    Password: "secret",
//	})
//	songs, err := client.Search3(ctx, "Bellwether", subsonic.SearchOptions{SongCount: 10})
//	err = client.Scrobble(ctx, songs[0].ID, time.Now(), true)
//
// Requests use salted token authentication unless Config.LegacyAuth is set.
// API failures are returned as *Error; a missing song matches ErrNotFound.
package subsonic
