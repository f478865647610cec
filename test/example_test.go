package test

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/graphql"
)

// Example_build demonstrates engine construction with a shared Redis record.
func Example_build() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := goSession.DefaultConfig()
	cfg.Endpoint.URL = "https://erp.example.com/graphql"

	engine, err := goSession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithSignInRedirector(func(ctx context.Context, reason error) {
			fmt.Println("please sign in again:", goSession.UserMessage(reason))
		}).
		Build()
	if err != nil {
		return
	}
	defer engine.Close()
	_ = engine.Start(context.Background())
}

// Example_signIn shows a typical sign-in call and structured error handling.
func Example_signIn() {
	var engine *goSession.Engine
	_, err := engine.SignIn(context.Background(), goSession.SignInInput{
		Email:    "alice@example.com",
		Password: "password",
	})
	switch {
	case errors.Is(err, goSession.ErrMFARequired):
		// prompt for a one-time code and retry with MFACode set
	case err != nil:
		fmt.Println(goSession.UserMessage(err))
	}
}

// Example_graphQL runs a data operation with credentials attached.
func Example_graphQL() {
	var engine *goSession.Engine
	var out struct {
		Customers []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"customers"`
	}
	err := engine.GraphQL().Do(context.Background(), graphql.Request{
		Query:         "query Customers { customers { id name } }",
		OperationName: "Customers",
	}, &out)
	if errors.Is(err, goSession.ErrSignedOut) {
		fmt.Println("session ended")
	}
}
