// Package lastfm is a small client for the Last.fm API 2.0 covering the
// desktop authentication flow and scrobbling.
//
// # Authentication
//
//	client, err := lastfm.NewClient(lastfm.Config{
//	    APIKey:    "your-api-key",
//	    APISecret: "your-shared-secret",
//	})
//
//	token, err := client.Auth().GetToken(ctx)
//	fmt.Println("Approve at:", client.Auth().GetAuthURL(token.Token))
//	// ... once approved:
//	session, err := client.Auth().GetSession(ctx, token.Token)
//	client.SetSessionKey(session.Key)
//
// # Scrobbling
//
//	_, err = client.Scrobble().UpdateNowPlaying(ctx, lastfm.Track{Artist: "Seamus Blake", Track: "Bellwether"})
//	resp, err := client.Scrobble().Scrobble(ctx, track, startedAt)
//	if resp.Ignored > 0 {
//	    log.Println(resp.Scrobbles[0].Ignored.Text)
//	}
//
// # Errors and retries
//
// API failures are returned as *Error, unexpected HTTP statuses as
// *HTTPError. Both report Temporary(); temporary failures and network errors
// are retried with exponential backoff (Config.MaxRetries, Config.RetryWait)
// before the error is returned. Every call honours its context.
//
// See https://www.last.fm/api/scrobbling for the protocol.
package lastfm
