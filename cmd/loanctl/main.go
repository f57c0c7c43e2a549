package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	defaultEndpoint = "127.0.0.1:50061"
	defaultPassEnv  = "NOTELEND_KEYSTORE_PASS"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "address":
		return runAddress(args[1:], stdout, stderr)
	case "sign-terms":
		return runSignTerms(args[1:], stdout, stderr)
	case "token":
		return runToken(args[1:], stdout, stderr)
	case "loan":
		return runLoan(args[1:], stdout, stderr)
	case "repay-amount":
		return runRepayAmount(args[1:], stdout, stderr)
	case "active":
		return runActive(args[1:], stdout, stderr)
	case "repay":
		return runRepay(args[1:], stdout, stderr)
	case "liquidate":
		return runLiquidate(args[1:], stdout, stderr)
	case "export-journal":
		return runExportJournal(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`
Usage: loanctl <command> [flags]

Keys and signing:
  keygen        --out <keystore> [--pass-env VAR]
  address       --keystore <file> [--pass-env VAR]
  sign-terms    --keystore <file> --terms <terms.json> [--params <params.toml>]
  token         --subject <addr> [--secret-env VAR] [--scopes a,b] [--ttl 1h]

Loan service (gRPC):
  loan          --id <loan>
  repay-amount  --id <loan>
  active        --borrower <addr>
  repay         --id <loan> --caller <addr>
  liquidate     --id <loan> --caller <addr>

Journal:
  export-journal --dsn <dsn> --out <file.parquet> [--driver sqlite] [--after seq]

gRPC commands accept --endpoint (default ` + defaultEndpoint + `) and read the API
token from NOTELEND_API_TOKEN.`)
}
