/*
Package authsdk is a client for the Gatekeeper token and authorization
service.

# SDKClient vs Session

SDKClient calls the public endpoints (login, refresh, revoke, health, JWKS)
and starts sessions. A Session holds an access/refresh token pair and
refreshes the access token before it expires:

	client := authsdk.NewSDKClient("https://auth.example.com")

	session, err := client.Login(ctx, "admin", "admin123")
	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// wrong username or password
	}

	me, err := session.Me(ctx)
	fmt.Println(me.Subject.Roles)

	ok, err := session.Authorize(ctx, "AdminOnly")

	_ = session.Revoke(ctx)

# Errors

Every non-2xx response becomes an *APIError. The predefined values
(ErrUnauthenticated, ErrInvalidCredentials, ErrForbidden, ...) match with
errors.Is on status code and error code, so callers never compare strings.
The server uses the same values to write its responses.

# Thread Safety

Sessions are safe for concurrent use. Concurrent calls that find the access
token expired perform a single refresh.
*/
package authsdk
