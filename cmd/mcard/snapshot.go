package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"mcard-go/internal/app"
	"mcard-go/internal/encryption"
	"mcard-go/internal/mcard"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassphrase prompts on stderr with echo disabled. When stdin is not a
// terminal one line is read without prompting. confirm asks twice.
func readPassphrase(prompt string, confirm bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if !confirm {
		return string(first), nil
	}

	fmt.Fprint(os.Stderr, "Confirm passphrase: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase confirmation: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	return string(first), nil
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the snapshot key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Snapshot.Encryption)
		if err != nil {
			return err
		}
		if enc == nil {
			return fmt.Errorf("snapshot encryption is disabled in config")
		}
		if enc.IsConfigured() {
			return fmt.Errorf("keys already exist at %s", cfg.Snapshot.Encryption.PublicKeyPath)
		}

		passphrase, err := readPassphrase("Passphrase: ", true)
		if err != nil {
			return err
		}
		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Printf("Public key:  %s\n", cfg.Snapshot.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s (encrypted)\n", cfg.Snapshot.Encryption.PrivateKeyPath)
		if age, ok := enc.(*encryption.AgeEncryptor); ok {
			if recipient, err := age.Recipient(); err == nil {
				fmt.Printf("Recipient:   %s\n", recipient)
			}
		}
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Copy the store to and from the vault",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Upload a new snapshot of the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("snapshot create", func(a *app.App) error {
			snap, err := a.Snapshotter()
			if err != nil {
				return err
			}
			version, err := snap.Create()
			if err != nil {
				return err
			}
			fmt.Printf("Created snapshot version %d\n", version)
			return nil
		})
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Download a snapshot into a new store file",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetInt64("version")
		dest, _ := cmd.Flags().GetString("to")
		if dest == "" {
			return fmt.Errorf("--to is required")
		}

		return withApp("snapshot restore", func(a *app.App) error {
			snap, err := a.Snapshotter()
			if err != nil {
				return err
			}
			enc, err := a.Encryptor()
			if err != nil {
				return err
			}

			var dctx mcard.DecryptionContext
			if enc != nil {
				passphrase, err := readPassphrase("Passphrase: ", false)
				if err != nil {
					return err
				}
				dctx, err = enc.Unlock(passphrase)
				if err != nil {
					return err
				}
			}

			restored, err := snap.Restore(version, dctx, dest)
			if err != nil {
				return err
			}
			fmt.Printf("Restored snapshot version %d to %s\n", restored, dest)
			return nil
		})
	},
}

func init() {
	keysCmd.AddCommand(keysInitCmd)
	rootCmd.AddCommand(keysCmd)

	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	snapshotRestoreCmd.Flags().Int64("version", 0, "Snapshot version (default latest)")
	snapshotRestoreCmd.Flags().String("to", "", "Path of the restored store file")
	rootCmd.AddCommand(snapshotCmd)
}
