package main

import "github.com/webfolio/mail-infra/internal/app"

func main() {
	app.Execute()
}
