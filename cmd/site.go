package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"froidapi/scraper"

	"github.com/spf13/cobra"
)

var postCmd = &cobra.Command{
	Use:   "post <post-id>",
	Short: "Print the download page of a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePostID(args[0])
		if err != nil {
			return err
		}
		s, err := siteCommand()
		if err != nil {
			return err
		}
		page, err := s.Post(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), page.Map())
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the site for posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := args[0]
		if len([]rune(query)) < 3 {
			return errors.New("query must be at least 3 characters")
		}
		legacy, err := cmd.Flags().GetBool("legacy")
		if err != nil {
			return err
		}
		page, err := cmd.Flags().GetInt("page")
		if err != nil {
			return err
		}
		perPage, err := cmd.Flags().GetInt("per-page")
		if err != nil {
			return err
		}
		if page < 1 || perPage < 1 {
			return errors.New("page and per-page must be positive")
		}

		s, err := siteCommand()
		if err != nil {
			return err
		}
		if legacy {
			result, err := s.LegacySearch(cmd.Context(), query, page)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		}
		result, err := s.Search(cmd.Context(), scraper.SearchQuery{Query: query, Page: page, PerPage: perPage})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments <post-id>",
	Short: "Print approved comments of a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePostID(args[0])
		if err != nil {
			return err
		}
		q := scraper.CommentQuery{PostID: id}
		if q.Page, err = cmd.Flags().GetInt("page"); err != nil {
			return err
		}
		if q.PerPage, err = cmd.Flags().GetInt("per-page"); err != nil {
			return err
		}
		if q.Search, err = cmd.Flags().GetString("search"); err != nil {
			return err
		}
		if q.Order, err = cmd.Flags().GetString("order"); err != nil {
			return err
		}
		if q.OrderBy, err = cmd.Flags().GetString("order-by"); err != nil {
			return err
		}
		if err := q.Validate(); err != nil {
			return err
		}

		s, err := siteCommand()
		if err != nil {
			return err
		}
		comments, err := s.Comments(cmd.Context(), q)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), comments)
	},
}

func parsePostID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid post id %q", arg)
	}
	return id, nil
}

func init() {
	searchCmd.Flags().Bool("legacy", false, "scrape the HTML search listing instead of the JSON endpoint")
	searchCmd.Flags().IntP("page", "p", 1, "page number")
	searchCmd.Flags().Int("per-page", 10, "results per page (JSON search only)")

	commentsCmd.Flags().IntP("page", "p", 1, "page number (1-100)")
	commentsCmd.Flags().Int("per-page", 10, "comments per page (1-100)")
	commentsCmd.Flags().StringP("search", "s", "", "only comments matching this text")
	commentsCmd.Flags().String("order", "", "asc or desc")
	commentsCmd.Flags().String("order-by", "", "date, date_gmt or id")

	rootCmd.AddCommand(postCmd, searchCmd, commentsCmd)
}
