// Command mintoken issues a gateway token for local testing. Production
// tokens are minted by the upstream gateway with the same shared secret.
//
//	mintoken -subject 6f1c2b1e-2f0a-4a51-9b9e-3c8d6a2e7f10 -ttl 1h
//
// The secret is taken from -secret, MISSIVE_JWT_SECRET or
// AUTH_GATEWAY_JWT_SECRET, in that order.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/missive/pkg/auth/jwt"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "mintoken:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("mintoken", flag.ContinueOnError)
	secret := fs.String("secret", "", "shared HMAC secret")
	subject := fs.String("subject", "", "identity UUID (random if empty)")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime, 0 for no expiry")
	header := fs.Bool("header", false, "print as an HTTP header line")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *secret == "" {
		*secret = os.Getenv("MISSIVE_JWT_SECRET")
	}
	if *secret == "" {
		*secret = os.Getenv("AUTH_GATEWAY_JWT_SECRET")
	}
	if *secret == "" {
		return errors.New("a secret is required")
	}

	if *subject == "" {
		*subject = uuid.NewString()
	} else if _, err := uuid.Parse(*subject); err != nil {
		return fmt.Errorf("subject %q is not a UUID", *subject)
	}

	tok, err := jwt.Sign([]byte(*secret), *subject, *ttl)
	if err != nil {
		return err
	}

	if *header {
		fmt.Fprintf(out, "%s: %s\n", jwt.DefaultHeader, tok)
		return nil
	}
	fmt.Fprintln(out, tok)
	return nil
}
