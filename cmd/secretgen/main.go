// Package main mints credentials for seed files and local testing: client
// secrets with their bcrypt hashes, password hashes, operator tokens and
// development access tokens.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	jwttoken "fitgate/internal/jwt_token"
	id "fitgate/pkg/domain"
	"fitgate/pkg/secrets"
)

const (
	// devSigningKey matches the server default when JWT_SIGNING_KEY is unset.
	devSigningKey = "dev-secret-key-change-in-production"

	defaultBaseURL  = "http://localhost:8080"
	defaultAudience = "fitgate"
	defaultTokenTTL = 15 * time.Minute
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "secretgen: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return errors.New("missing command")
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "client":
		return clientSecret(rest, out)
	case "hash":
		return hashValue(rest, stdin, out)
	case "admin":
		return adminToken(rest, out)
	case "token":
		return accessToken(rest, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `secretgen - mint credentials for fitgate seed files and local testing

Usage:
  secretgen <command> [flags]

Commands:
  client    Generate a client secret and the bcrypt hash for client_secret_hash
  hash      Hash a password or secret (from --value or stdin) for password_hash
  admin     Generate a random operator token for ADMIN_API_TOKEN
  token     Mint a development access token (dev signing key by default)

Examples:
  secretgen client --json
  echo -n 'correct-horse' | secretgen hash
  secretgen token --tenant-id <uuid> --principal-id <uuid> --scopes fitness:read,tasks:write

Use "secretgen <command> --help" for the flags of a command.`)
}

type secretOutput struct {
	Secret string `json:"secret,omitempty"`
	Hash   string `json:"hash,omitempty"`
}

func clientSecret(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("client", pflag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	secret, err := secrets.Generate()
	if err != nil {
		return err
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(out, secretOutput{Secret: secret, Hash: hash})
	}
	fmt.Fprintf(out, "client_secret:      %s\n", secret)
	fmt.Fprintf(out, "client_secret_hash: %s\n", hash)
	fmt.Fprintln(out, "\nGive the secret to the client; put only the hash in the seed file.")
	return nil
}

func hashValue(args []string, stdin io.Reader, out io.Writer) error {
	fs := pflag.NewFlagSet("hash", pflag.ContinueOnError)
	value := fs.String("value", "", "value to hash; read from stdin when empty")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	v := *value
	if v == "" {
		raw, err := io.ReadAll(io.LimitReader(stdin, 4096))
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		v = strings.TrimRight(string(raw), "\r\n")
	}
	hash, err := secrets.Hash(v)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(out, secretOutput{Hash: hash})
	}
	fmt.Fprintln(out, hash)
	return nil
}

func adminToken(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("admin", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	token, err := secrets.Generate()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "ADMIN_API_TOKEN=%s\n", token)
	return nil
}

type tokenOutput struct {
	Token     string    `json:"token"`
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
	TenantID  string    `json:"tenant_id"`
	Subject   string    `json:"subject"`
	Kind      string    `json:"principal_kind"`
	Scopes    []string  `json:"scopes"`
}

func accessToken(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	tenantID := fs.String("tenant-id", "", "tenant UUID (required)")
	principalID := fs.String("principal-id", "", "user or client UUID; generated when empty")
	kind := fs.String("kind", string(id.PrincipalUser), "principal kind: user or client")
	clientID := fs.String("client-id", "", "OAuth client_id the token was issued to")
	scopes := fs.StringSlice("scopes", []string{id.ScopeFitnessRead}, "granted scopes")
	ttl := fs.Duration("ttl", defaultTokenTTL, "token lifetime")
	signingKey := fs.String("signing-key", devSigningKey, "HS256 signing key; must match JWT_SIGNING_KEY")
	baseURL := fs.String("base-url", defaultBaseURL, "issuer base URL; must match FITGATE_BASE_URL")
	audience := fs.String("audience", defaultAudience, "audience; must match JWT_AUDIENCE")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tenant, err := id.ParseTenantID(*tenantID)
	if err != nil {
		return fmt.Errorf("--tenant-id: %w", err)
	}
	subject := *principalID
	if subject == "" {
		subject = uuid.NewString()
	} else if _, err := uuid.Parse(subject); err != nil {
		return fmt.Errorf("--principal-id: %w", err)
	}

	svc := jwttoken.NewJWTService(*signingKey, *baseURL, *audience, *ttl)
	issued, err := svc.Issue(context.Background(), jwttoken.IssueParams{
		TenantID:      tenant,
		PrincipalID:   subject,
		PrincipalKind: id.PrincipalKind(*kind),
		ClientID:      *clientID,
		Scopes:        *scopes,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(out, tokenOutput{
			Token:     issued.Token,
			JTI:       issued.JTI,
			ExpiresAt: issued.ExpiresAt,
			TenantID:  tenant.String(),
			Subject:   subject,
			Kind:      *kind,
			Scopes:    *scopes,
		})
	}
	if *signingKey == devSigningKey {
		fmt.Fprintln(out, "WARNING: signed with the development key; production servers reject it.")
	}
	fmt.Fprintf(out, "Subject:    %s (%s)\n", subject, *kind)
	fmt.Fprintf(out, "Tenant:     %s\n", tenant)
	fmt.Fprintf(out, "Scopes:     %s\n", strings.Join(*scopes, " "))
	fmt.Fprintf(out, "Expires at: %s\n\n", issued.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintln(out, issued.Token)
	return nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
