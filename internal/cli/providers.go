package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/doorman/pkg/provider"
)

var (
	flagProvidersFile string
	flagProvidersJSON bool
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List known providers and whether they are configured",
	Long: `List the builtin providers plus any declared in a providers file, with
the protocol each one speaks and whether client credentials were found in
the environment.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		file := flagProvidersFile
		if file == "" {
			file = os.Getenv("DOORMAN_PROVIDERS_FILE")
		}
		reg, err := loadRegistry(file)
		if err != nil {
			return err
		}
		list, err := listProviders(reg)
		if err != nil {
			return err
		}
		if flagProvidersJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}
		return printProviders(cmd.OutOrStdout(), list)
	},
}

func init() {
	providersCmd.Flags().StringVarP(&flagProvidersFile, "file", "f", "", "YAML file with extra provider descriptors (default $DOORMAN_PROVIDERS_FILE)")
	providersCmd.Flags().BoolVar(&flagProvidersJSON, "json", false, "print as JSON")
}

type providerInfo struct {
	Name       string            `json:"name"`
	Protocol   provider.Protocol `json:"protocol"`
	Configured bool              `json:"configured"`
	EnvPrefix  string            `json:"env_prefix"`
}

func listProviders(reg *provider.Registry) ([]providerInfo, error) {
	names := reg.Names()
	list := make([]providerInfo, 0, len(names))
	for _, name := range names {
		d, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		_, ok, err := loadCredentials(name)
		if err != nil {
			return nil, err
		}
		list = append(list, providerInfo{
			Name:       d.Name,
			Protocol:   d.Protocol,
			Configured: ok,
			EnvPrefix:  envPrefix(name),
		})
	}
	return list, nil
}

func printProviders(w io.Writer, list []providerInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPROTOCOL\tCONFIGURED\tENV PREFIX")
	for _, p := range list {
		configured := "no"
		if p.Configured {
			configured = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Protocol, configured, p.EnvPrefix)
	}
	return tw.Flush()
}
