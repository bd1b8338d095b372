package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"proplend/crypto"
)

const minSecretBytes = 16

type tokenOptions struct {
	subject     string
	issuer      string
	audience    string
	ttl         time.Duration
	secretStdin bool
	prompt      bool
}

func newTokenCmd() *cobra.Command {
	opts := tokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development bearer token for ledgerd",
		Example: "  printf '%s' \"$LEDGERD_HMAC_SECRET\" | lendctl token --sub plend1... --secret-stdin\n" +
			"  lendctl token --sub plend1... --prompt --ttl 1h",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.secretStdin == opts.prompt {
				return fmt.Errorf("exactly one of --secret-stdin or --prompt is required")
			}
			var (
				secret []byte
				err    error
			)
			if opts.secretStdin {
				secret, err = readSecret(cmd.InOrStdin())
			} else {
				secret, err = promptSecret(cmd.ErrOrStderr())
			}
			if err != nil {
				return err
			}
			token, err := signToken(secret, opts, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.subject, "sub", "", "Bech32 address the token authenticates as")
	flags.StringVar(&opts.issuer, "issuer", "", "Issuer claim expected by ledgerd")
	flags.StringVar(&opts.audience, "audience", "", "Audience claim expected by ledgerd")
	flags.DurationVar(&opts.ttl, "ttl", 15*time.Minute, "Token lifetime")
	flags.BoolVar(&opts.secretStdin, "secret-stdin", false, "Read the HMAC secret from stdin")
	flags.BoolVar(&opts.prompt, "prompt", false, "Prompt for the HMAC secret without echo")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

func signToken(secret []byte, opts tokenOptions, now time.Time) (string, error) {
	if len(secret) < minSecretBytes {
		return "", fmt.Errorf("secret must be at least %d bytes", minSecretBytes)
	}
	subject := strings.TrimSpace(opts.subject)
	if _, err := crypto.DecodeAddress(subject); err != nil {
		return "", fmt.Errorf("subject: %w", err)
	}
	if opts.ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(opts.ttl)),
	}
	if issuer := strings.TrimSpace(opts.issuer); issuer != "" {
		claims.Issuer = issuer
	}
	if audience := strings.TrimSpace(opts.audience); audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func readSecret(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return nil, fmt.Errorf("empty secret on stdin")
	}
	return []byte(secret), nil
}

func promptSecret(w io.Writer) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("--prompt requires an interactive terminal; use --secret-stdin")
	}
	fmt.Fprint(w, "HMAC secret: ")
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("read secret: %w", err)
	}
	return secret, nil
}
