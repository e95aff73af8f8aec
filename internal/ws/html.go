package ws

import (
	"fmt"
	"html"
)

// The three pages shown to the user in the provider's popup window.
// Self-contained with inline styles so they render with no asset
// requests back to the relay.

const successPage = `<!DOCTYPE html>
<html><head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Authentication successful</title>
<style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
           text-align: center; padding: 50px 20px; background: #f5f5f5; margin: 0; }
    .card { background: white; border-radius: 12px; padding: 40px; max-width: 400px;
            margin: 0 auto; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
    h1 { color: #10b981; margin-bottom: 16px; font-size: 24px; }
    p { color: #6b7280; line-height: 1.6; }
    .icon { font-size: 48px; margin-bottom: 20px; }
</style>
</head>
<body>
<div class="card">
    <div class="icon">&#9989;</div>
    <h1>Authentication successful!</h1>
    <p>You can close this window and return to the application.</p>
</div>
</body></html>
`

const errorPageFormat = `<!DOCTYPE html>
<html><head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Authentication failed</title>
<style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
           text-align: center; padding: 50px 20px; background: #f5f5f5; margin: 0; }
    .card { background: white; border-radius: 12px; padding: 40px; max-width: 400px;
            margin: 0 auto; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
    h1 { color: #ef4444; margin-bottom: 16px; font-size: 24px; }
    p { color: #6b7280; line-height: 1.6; }
    .error { background: #fef2f2; border: 1px solid #fecaca; border-radius: 8px;
             padding: 12px; margin-top: 16px; color: #dc2626; font-size: 14px; }
    .icon { font-size: 48px; margin-bottom: 20px; }
</style>
</head>
<body>
<div class="card">
    <div class="icon">&#10060;</div>
    <h1>Authentication failed</h1>
    <p>Something went wrong during authentication.</p>
    <div class="error">%s</div>
    <p style="margin-top: 20px;">You can close this window and try again from the application.</p>
</div>
</body></html>
`

const waitingPage = `<!DOCTYPE html>
<html><head>
<meta charset="utf-8">
<title>Waiting...</title>
<style>
    body { font-family: sans-serif; text-align: center; padding: 50px; }
</style>
</head>
<body>
<h1>Session registered</h1>
<p>Waiting for the OAuth callback...</p>
</body></html>
`

// errorPage renders the failure page. The message comes straight from
// the provider's error_description query parameter, so it is escaped
// before interpolation.
func errorPage(message string) string {
	return fmt.Sprintf(errorPageFormat, html.EscapeString(message))
}
