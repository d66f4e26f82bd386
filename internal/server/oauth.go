package server

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/spx/internal/shared"
)

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`

const badRequestBody = "400 - Bad Request - Malformed request"

// ParseAuthorizationCode extracts the authorization code from a redirect URL.
//
// A non-empty state must match the state carried by the URL. An error parameter from the provider,
// a missing code or an unparseable URL all wrap [shared.ErrInvalidCallback].
func ParseAuthorizationCode(redirect, state string) (string, error) {
	redirect = strings.TrimSpace(redirect)
	if redirect == "" {
		return "", fmt.Errorf("%w: empty redirect URL", shared.ErrInvalidCallback)
	}

	u, err := url.Parse(redirect)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidCallback, err)
	}

	query := u.Query()
	if errParam := query.Get("error"); errParam != "" {
		if desc := query.Get("error_description"); desc != "" {
			return "", fmt.Errorf("%w: authorization failed: %s - %s", shared.ErrInvalidCallback, errParam, desc)
		}
		return "", fmt.Errorf("%w: authorization failed: %s", shared.ErrInvalidCallback, errParam)
	}

	if state != "" && query.Get("state") != state {
		return "", fmt.Errorf("%w: invalid state parameter", shared.ErrInvalidCallback)
	}

	code := query.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: missing code parameter", shared.ErrInvalidCallback)
	}
	return code, nil
}
