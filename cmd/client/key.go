package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ledgerchat/internal/cryptographic/keyring"
)

// keyCmd manages the symmetric key material: export for cross-device
// recovery, import of a previously exported key (or a recovery
// phrase), and destructive reset.
func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage end-to-end encryption keys",
	}

	withKeyring := func(fn func(k *keyring.Keyring, args []string) error) func(*cobra.Command, []string) {
		return func(cmd *cobra.Command, args []string) {
			store := openStore()
			defer store.Close()
			if err := fn(keyring.New(store), args); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Print the portable form of the user key",
		Args:  cobra.NoArgs,
		Run: withKeyring(func(k *keyring.Keyring, _ []string) error {
			exported, err := k.Export()
			if err != nil {
				return err
			}
			fmt.Println(exported)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <key>",
		Short: "Replace the user key with an exported key or recovery phrase",
		Args:  cobra.ExactArgs(1),
		Run: withKeyring(func(k *keyring.Keyring, args []string) error {
			return k.Import(args[0])
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Destroy the user key and generate a fresh one",
		Args:  cobra.NoArgs,
		Run: withKeyring(func(k *keyring.Keyring, _ []string) error {
			return k.Reset()
		}),
	})

	var groupID string
	groupExport := &cobra.Command{
		Use:   "export-group",
		Short: "Print the portable form of a group key",
		Args:  cobra.NoArgs,
		Run: withKeyring(func(k *keyring.Keyring, _ []string) error {
			exported, err := k.ExportGroup(groupID)
			if err != nil {
				return err
			}
			fmt.Println(exported)
			return nil
		}),
	}
	groupExport.Flags().StringVar(&groupID, "group", "", "group id")
	groupExport.MarkFlagRequired("group")
	cmd.AddCommand(groupExport)

	var importGroupID string
	groupImport := &cobra.Command{
		Use:   "import-group <key>",
		Short: "Replace a group key",
		Args:  cobra.ExactArgs(1),
		Run: withKeyring(func(k *keyring.Keyring, args []string) error {
			return k.ImportGroup(importGroupID, args[0])
		}),
	}
	groupImport.Flags().StringVar(&importGroupID, "group", "", "group id")
	groupImport.MarkFlagRequired("group")
	cmd.AddCommand(groupImport)

	return cmd
}
