package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"notelend/cmd/internal/passphrase"
	"notelend/crypto"
	"notelend/gateway/middleware"
	"notelend/native/loans"
	loansv1 "notelend/proto/loans/v1"
)

func loadKey(path, passEnv string) (*crypto.PrivateKey, error) {
	pass, err := passphrase.NewSource(passEnv).Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var out, passEnv string
	var light bool
	fs.StringVar(&out, "out", "", "output path for the keystore file")
	fs.StringVar(&passEnv, "pass-env", defaultPassEnv, "environment variable holding the keystore passphrase")
	fs.BoolVar(&light, "light", false, "use light scrypt parameters (development only)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	out = strings.TrimSpace(out)
	if out == "" {
		fmt.Fprintln(stderr, "Error: --out is required")
		return 1
	}
	if _, err := os.Stat(out); err == nil {
		fmt.Fprintf(stderr, "Error: keystore %s already exists\n", out)
		return 1
	}
	pass, err := passphrase.NewConfirmedSource(passEnv).Get()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(stderr, "Error: generate key: %v\n", err)
		return 1
	}
	cost := crypto.StandardCost
	if light {
		cost = crypto.LightCost
	}
	if err := crypto.SaveToKeystoreWithCost(out, key, pass, cost); err != nil {
		fmt.Fprintf(stderr, "Error: write keystore: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, key.PubKey().Address().String())
	return 0
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var path, passEnv string
	fs.StringVar(&path, "keystore", "", "keystore file")
	fs.StringVar(&passEnv, "pass-env", defaultPassEnv, "environment variable holding the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(path) == "" {
		fmt.Fprintln(stderr, "Error: --keystore is required")
		return 1
	}
	key, err := loadKey(path, passEnv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, key.PubKey().Address().String())
	return 0
}

// runSignTerms signs a terms document with the operator key and prints the
// InitiateLoan request body.
func runSignTerms(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sign-terms", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var keyPath, passEnv, termsPath, paramsPath string
	fs.StringVar(&keyPath, "keystore", "", "signer keystore file")
	fs.StringVar(&passEnv, "pass-env", defaultPassEnv, "environment variable holding the keystore passphrase")
	fs.StringVar(&termsPath, "terms", "", "JSON terms document")
	fs.StringVar(&paramsPath, "params", "", "loans params TOML providing the signing domain")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(keyPath) == "" || strings.TrimSpace(termsPath) == "" {
		fmt.Fprintln(stderr, "Error: --keystore and --terms are required")
		return 1
	}
	raw, err := os.ReadFile(termsPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: read terms: %v\n", err)
		return 1
	}
	var wire loansv1.Terms
	if err := json.Unmarshal(raw, &wire); err != nil {
		fmt.Fprintf(stderr, "Error: decode terms: %v\n", err)
		return 1
	}
	terms, err := wire.ToDomain()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cfg, err := loans.LoadConfig(paramsPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	params, err := cfg.Params()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	key, err := loadKey(keyPath, passEnv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	sig, err := loans.SignTerms(params.Domain, terms, key)
	if err != nil {
		fmt.Fprintf(stderr, "Error: sign terms: %v\n", err)
		return 1
	}
	return writeJSON(stdout, stderr, &loansv1.InitiateLoanRequest{
		Terms:     loansv1.TermsFromDomain(terms),
		Signature: loansv1.EncodeSignature(sig),
	})
}

func runToken(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var subject, secretEnv, scopes, issuer, audience string
	var ttl time.Duration
	fs.StringVar(&subject, "subject", "", "bech32 address the token acts for")
	fs.StringVar(&secretEnv, "secret-env", "NOTELEND_GATEWAY_SECRET", "environment variable holding the gateway HMAC secret")
	fs.StringVar(&scopes, "scopes", "loans:read,loans:write", "comma separated scopes")
	fs.StringVar(&issuer, "issuer", "", "token issuer")
	fs.StringVar(&audience, "audience", "", "token audience")
	fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	caller, err := crypto.ParseRaw(subject)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --subject: %v\n", err)
		return 1
	}
	secret := strings.TrimSpace(os.Getenv(secretEnv))
	if secret == "" {
		fmt.Fprintf(stderr, "Error: %s is not set\n", secretEnv)
		return 1
	}
	var scopeList []string
	for _, scope := range strings.Split(scopes, ",") {
		if trimmed := strings.TrimSpace(scope); trimmed != "" {
			scopeList = append(scopeList, trimmed)
		}
	}
	token, err := middleware.IssueToken(secret, caller, issuer, audience, scopeList, ttl)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func writeJSON(stdout, stderr io.Writer, v interface{}) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "Error: encode output: %v\n", err)
		return 1
	}
	return 0
}
