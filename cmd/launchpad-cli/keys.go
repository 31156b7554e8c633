package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"launchpad/crypto"
)

type keyResult struct {
	Address string `json:"address"`
	Hex     string `json:"hex"`
	Path    string `json:"keystore,omitempty"`
}

func newKeygenCmd() *cobra.Command {
	var force, light bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key and write it to the profile keystore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			path := s.profile.Keystore
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("keystore %s already exists; pass --force to replace it", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			pass, err := s.pass.Get()
			if err != nil {
				return err
			}
			key, err := crypto.GeneratePrivateKey()
			if err != nil {
				return err
			}
			params := crypto.StandardScrypt
			if light {
				params = crypto.LightScrypt
			}
			if err := crypto.SaveToKeystore(path, key, pass, params); err != nil {
				return err
			}
			if _, err := os.Stat(flagMain.Profile); errors.Is(err, fs.ErrNotExist) {
				if err := SaveProfile(flagMain.Profile, s.profile); err != nil {
					return fmt.Errorf("write profile: %w", err)
				}
			}
			addr := key.PubKey().Address()
			return s.print(keyResult{Address: crypto.FormatAddress(addr), Hex: addr.Hex(), Path: path})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing keystore")
	cmd.Flags().BoolVar(&light, "light", false, "Use light scrypt parameters (testing only)")
	return cmd
}

func newAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the address of the profile keystore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			key, err := s.loadKey()
			if err != nil {
				return err
			}
			addr := key.PubKey().Address()
			return s.print(keyResult{Address: crypto.FormatAddress(addr), Hex: addr.Hex()})
		},
	}
}

func (s *session) loadKey() (*crypto.PrivateKey, error) {
	if _, err := os.Stat(s.profile.Keystore); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("keystore %s not found; run launchpad-cli keygen first", s.profile.Keystore)
	}
	pass, err := s.pass.Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(s.profile.Keystore, pass)
	if err != nil {
		return nil, fmt.Errorf("unlock keystore %s: %w", s.profile.Keystore, err)
	}
	return key, nil
}
