// Package main EHR Chatbot API Server
//
//	@title			EHR Chatbot API
//	@version		1.0
//	@description	Condition scoped patient Q&A: knowledge base retrieval gated by confidence, with clarification and generative fallback
//
//	@contact.name	API Support
//
//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer JWT whose user_id or sub claim is the numeric owner id
package main

import (
	"context"
	"fmt"
	"os"

	_ "ehr-chatbot/docs" // registers the swagger docs
	"ehr-chatbot/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
