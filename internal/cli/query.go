package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"as2org/internal/model"
	"as2org/internal/sink"
)

func parseASNs(args []string) ([]uint32, error) {
	asns := make([]uint32, 0, len(args))
	for _, arg := range args {
		asn, err := model.ParseASN(arg)
		if err != nil {
			return nil, err
		}
		asns = append(asns, asn)
	}
	return asns, nil
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info ASN...",
		Short: "Print the organization details of each AS number",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asns, err := parseASNs(args)
			if err != nil {
				return err
			}
			ds, err := a.load(cmd.Context(), nil)
			if err != nil {
				return err
			}

			out := sink.NewStreamWriter(cmd.OutOrStdout())
			missing := 0
			for _, asn := range asns {
				info, ok := ds.ASInfo(asn)
				if !ok {
					a.log.Warn("info: AS number not found", "asn", asn)
					missing++
					continue
				}
				if err := out.Append(info); err != nil {
					return err
				}
			}
			if missing > 0 {
				return fmt.Errorf("%d of %d AS numbers not found", missing, len(asns))
			}
			return nil
		},
	}
}

func newSiblingsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "siblings ASN",
		Short: "Print every AS number registered to the same organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asn, err := model.ParseASN(args[0])
			if err != nil {
				return err
			}
			ds, err := a.load(cmd.Context(), nil)
			if err != nil {
				return err
			}

			sibs, ok := ds.Siblings(asn)
			if !ok {
				return fmt.Errorf("AS%d not found", asn)
			}
			out := sink.NewStreamWriter(cmd.OutOrStdout())
			for _, info := range sibs {
				if err := out.Append(info); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

type siblingsResult struct {
	A        uint32 `json:"a"`
	B        uint32 `json:"b"`
	Siblings bool   `json:"siblings"`
}

func newAreSiblingsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "are-siblings ASN ASN",
		Short: "Report whether two AS numbers belong to the same organization",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			asns, err := parseASNs(args)
			if err != nil {
				return err
			}
			ds, err := a.load(cmd.Context(), nil)
			if err != nil {
				return err
			}

			res := siblingsResult{A: asns[0], B: asns[1], Siblings: ds.AreSiblings(asns[0], asns[1])}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(&res)
		},
	}
}
