// Package gmail provides a client for interacting with the Gmail API.
//
// This package offers the inbox access needed for classification:
//   - Paginated listing of INBOX message IDs
//   - Full message fetch and parsing into the reduced Message form the
//     classification pipeline consumes (headers, From splitting, body
//     extraction with HTML preferred over plain text, nested multipart
//     walking, base64url decoding)
//   - Category label management: per-category "SmartInbox/<category>"
//     labels with palette-mapped colors, created on demand and applied
//     to classified messages
//
// The client supports multi-account authentication using the Google OAuth2
// flow from the google package.
//
// Authentication:
// For HTTP transport: OAuth is handled by the MCP client and tokens come
// from the server's token store.
// For STDIO transport and CLI usage: Tokens are loaded from the file
// system (~/.cache/smartinbox/).
//
// Example usage:
//
//	ctx := context.Background()
//	client, err := gmail.NewClient(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// List the newest 50 inbox message IDs
//	ids, err := client.ListInboxMessageIDs(50)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Fetch and parse one message
//	msg, err := client.FetchMessage(ids[0])
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(msg.Subject, msg.Sender)
package gmail
