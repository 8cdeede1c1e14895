package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "audit", "diagnose", "condo", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "audit-flash", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAuditCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range auditCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"init", "complete", "refresh", "show", "diagnose"} {
		assert.True(t, names[name], "audit should have subcommand %q", name)
	}
}

func TestAuditCommands_RequireID(t *testing.T) {
	for _, c := range []string{"complete", "refresh", "show", "diagnose"} {
		cmd, _, err := auditCmd.Find([]string{c})
		require.NoError(t, err)
		flag := cmd.Flags().Lookup("id")
		require.NotNil(t, flag, "audit %s should have --id", c)
		assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"])
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestDiagnoseCommand_Flags(t *testing.T) {
	for _, name := range []string{"current", "target", "units", "unit-surface", "price", "sales", "cost", "cost-ttc", "mix", "tantiemes", "energy-bill", "local-aid", "as-of"} {
		assert.NotNil(t, diagnoseCmd.Flags().Lookup(name), "diagnose should have --%s", name)
	}
	assert.Equal(t, "C", diagnoseCmd.Flags().Lookup("target").DefValue)
}

func TestCondoImportCommand_Flags(t *testing.T) {
	for _, name := range []string{"src", "charset", "delimiter", "sheet", "batch-size"} {
		assert.NotNil(t, condoImportCmd.Flags().Lookup(name), "condo import should have --%s", name)
	}
}
