// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/blinklabs-io/certledger/address"
	"github.com/spf13/cobra"
)

func addressApi(cmd *cobra.Command) (*address.Bech32Api, error) {
	cfg, err := configFromCommand(cmd)
	if err != nil {
		return nil, err
	}
	return address.NewBech32Api(address.WithPrefix(cfg.AddressPrefix)), nil
}

func addressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Convert between canonical and human-readable addresses",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "encode <hex>",
			Short: "Encode a hex canonical address as bech32",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := addressApi(cmd)
				if err != nil {
					return err
				}
				raw, err := hex.DecodeString(args[0])
				if err != nil {
					return fmt.Errorf("%w: %w", address.ErrMalformedAddress, err)
				}
				human, err := api.HumanAddress(address.CanonicalAddr(raw))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), human)
				return err
			},
		},
		&cobra.Command{
			Use:   "decode <bech32>",
			Short: "Decode a bech32 address to hex",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := addressApi(cmd)
				if err != nil {
					return err
				}
				canonical, err := api.CanonicalAddress(address.HumanAddr(args[0]))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), canonical)
				return err
			},
		},
	)
	return cmd
}
