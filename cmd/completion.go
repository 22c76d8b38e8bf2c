package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/chris/mergen/internal/config"
	"github.com/chris/mergen/pkg/models"
)

func init() {
	// Register custom completions after all commands are initialized
	cobra.OnInitialize(registerCompletions)
}

func registerCompletions() {
	// --db flag: complete with .db files
	rootCmd.RegisterFlagCompletionFunc("db", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"db"}, cobra.ShellCompDirectiveFilterFileExt
	})

	hookCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return supportedShells, cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	for _, c := range []*cobra.Command{listCmd, exportCmd, summaryCmd, fzfCmd} {
		c.RegisterFlagCompletionFunc("category", completeCategory)
	}
	insertCmd.RegisterFlagCompletionFunc("category", completeCategory)

	summaryCmd.RegisterFlagCompletionFunc("bucket", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"day\tGroup by day",
			"week\tGroup by week",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	updateCmd.ValidArgsFunction = completeUpdateArgs

	completeKey := func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.Keys, cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	configGetCmd.ValidArgsFunction = completeKey
	configSetCmd.ValidArgsFunction = completeKey
}

// completeCategory offers stored categories, falling back to the standard list
func completeCategory(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return categoriesForCompletion(), cobra.ShellCompDirectiveNoFileComp
}

func categoriesForCompletion() []string {
	database, err := openStore()
	if err != nil {
		return models.Categories
	}
	defer database.Close()

	categories, err := database.ListCategories()
	if err != nil || len(categories) == 0 {
		return models.Categories
	}
	return categories
}

// completeUpdateArgs completes "update <id> <field> <value>"
func completeUpdateArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 1:
		return []string{
			"masked_command\tStored masked text",
			"query_summary\tWhat the command is for",
			"category\tCategory label",
			"favorite\tStarred (true/false)",
		}, cobra.ShellCompDirectiveNoFileComp
	case 2:
		switch strings.TrimSpace(args[1]) {
		case "category":
			return models.Categories, cobra.ShellCompDirectiveNoFileComp
		case "favorite":
			return []string{"true", "false"}, cobra.ShellCompDirectiveNoFileComp
		}
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
