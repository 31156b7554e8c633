package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"launchpad/cmd/internal/passphrase"
	"launchpad/rpc"
	"launchpad/rpc/client"
)

var flagMain struct {
	Profile  string
	RPCURL   string
	Keystore string
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "launchpad-cli",
		Short:         "Operate a launchpad node: keys, transactions and queries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flagMain.Profile, "profile", "p", defaultProfilePath(), "Path to the CLI profile")
	cmd.PersistentFlags().StringVar(&flagMain.RPCURL, "rpc", "", "JSON-RPC endpoint (overrides the profile)")
	cmd.PersistentFlags().StringVarP(&flagMain.Keystore, "keystore", "k", "", "Keystore file (overrides the profile)")

	cmd.AddCommand(newKeygenCmd(), newAddressCmd(), newTxCmd(), newQueryCmd(), newWatchCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session bundles the resolved profile with the collaborators commands use.
type session struct {
	profile *Profile
	client  *client.Client
	pass    *passphrase.Source
	out     io.Writer
}

func openSession(cmd *cobra.Command) (*session, error) {
	profile, err := LoadProfile(flagMain.Profile)
	if err != nil {
		return nil, err
	}
	if flagMain.RPCURL != "" {
		profile.RPCURL = flagMain.RPCURL
	}
	if flagMain.Keystore != "" {
		profile.Keystore = flagMain.Keystore
	}
	c, err := client.New(profile.RPCURL, client.Options{Token: profile.tokenSource(time.Now)})
	if err != nil {
		return nil, err
	}
	return &session{
		profile: profile,
		client:  c,
		pass:    passphrase.NewSource(profile.PassphraseEnv, "keystore passphrase"),
		out:     cmd.OutOrStdout(),
	}, nil
}

func (s *session) print(v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.out, string(encoded))
	return err
}

// tokenSource mints a JWT per submission when the profile names a secret
// variable.
func (p *Profile) tokenSource(now func() time.Time) client.TokenSource {
	if p.JWTSecretEnv == "" {
		return nil
	}
	return func() (string, error) {
		secret, ok := os.LookupEnv(p.JWTSecretEnv)
		if !ok {
			return "", fmt.Errorf("%s is not set", p.JWTSecretEnv)
		}
		return rpc.IssueToken(secret, p.JWTIssuer, p.JWTAudience, 5*time.Minute, now())
	}
}
