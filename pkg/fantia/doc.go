// Package fantia is the platform client: session cookies, endpoints, the
// paced and retrying transport, JSON models, HTML scraping and content
// classification.
//
//	client, err := fantia.NewClient(fantia.Options{SessionID: id, Logger: log})
//	if err != nil {
//	    return err
//	}
//	if err := client.VerifySession(ctx); err != nil {
//	    return err // errors.ErrorTypeAuth
//	}
//	post, err := client.FetchPost(ctx, 12345)
//
// Content items are classified into a closed set of Payload types with
// Client.Classify.
package fantia
