// @title                       Storefront Identity API
// @version                     1.0
// @description                 Registration, login, session tokens and role administration for the storefront.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the session token.
package main

import "github.com/storefront/identity-service/cmd"

func main() {
	cmd.Execute()
}
