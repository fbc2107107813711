/*
Package gatewaysdk is a Go client for the SwiftLogistics API gateway.

The package is organized around two types:

  - SDKClient: unauthenticated operations (register, login, health, public tracking)
  - Session: operations on behalf of a logged-in user

Typical use:

	client := gatewaysdk.NewSDKClient("https://api.swiftlogistics.example")

	session, err := client.Login(ctx, "client@example.com", "secret123")
	if gatewaysdk.IsCode(err, gatewaysdk.CodeInvalidCredentials) {
		// wrong email or password
	}

	order, err := session.CreateOrder(ctx, gatewaysdk.CreateOrderRequest{...})

	// Revokes the token server side; later calls with it fail with TOKEN_REVOKED.
	err = session.Logout(ctx)

Request types carry validation rules; call Validate before sending to get
field errors without a round trip:

	if errs := req.Validate(); errs != nil {
		for field, msg := range errs {
			fmt.Printf("%s: %s\n", field, msg)
		}
	}

Every non-2xx response is returned as an *APIError carrying the gateway's
machine-readable code.
*/
package gatewaysdk
