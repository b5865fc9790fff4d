package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canonical/datahub-init/internal/credentials"
)

func newSecretCommand(resources *applicationResources) *cobra.Command {
	secretCommand := &cobra.Command{
		Use:           "secret",
		Short:         "Work with generated credentials",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	secretCommand.AddCommand(newSecretGenerateCommand(resources))
	return secretCommand
}

func newSecretGenerateCommand(resources *applicationResources) *cobra.Command {
	generateCommand := &cobra.Command{
		Use:           "generate",
		Short:         "Generate an alphanumeric secret",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSecretGenerate(cmd)
		},
	}

	generateCommand.Flags().Int(flagNameSecretLength, resources.configurationManager.GetInt(configKeySecretLength), "Length of the generated secret")
	_ = resources.configurationManager.BindPFlag(configKeySecretLength, generateCommand.Flags().Lookup(flagNameSecretLength))

	return generateCommand
}

func runSecretGenerate(cmd *cobra.Command) error {
	resources, err := getApplicationResources(cmd)
	if err != nil {
		return err
	}
	secretValue, generateErr := credentials.GenerateSecret(resources.configurationManager.GetInt(configKeySecretLength))
	if generateErr != nil {
		return generateErr
	}
	fmt.Fprintln(cmd.OutOrStdout(), secretValue)
	return nil
}
