package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/fundiconnect/fundi-go/pkg/fundi"
	"github.com/spf13/cobra"
)

func newCategoriesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List trade categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			categories, err := a.client.Categories.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tJOBS")
			for _, c := range categories {
				fmt.Fprintf(w, "%d\t%s\t%d\n", c.ID, c.Name, c.JobsCount)
			}
			return w.Flush()
		},
	}
}

func newJobsCommand(opts *rootOptions) *cobra.Command {
	var (
		page   int
		all    bool
		filter fundi.JobFilter
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List, show, post and apply to jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireSession(); err != nil {
				return err
			}

			var (
				jobs []fundi.Job
				more *fundi.Pagination
			)
			total := 0
			if all {
				feed := a.client.Jobs.NewFeed(&filter)
				if err := feed.LoadFirst(cmd.Context()); err != nil {
					return err
				}
				for feed.HasMore() {
					if _, err := feed.LoadMore(cmd.Context()); err != nil {
						return err
					}
				}
				jobs, total = feed.Items(), feed.Total()
			} else {
				p, err := a.client.Jobs.List(cmd.Context(), page, &filter)
				if err != nil {
					return err
				}
				jobs, total = p.Data, p.Total
				if p.HasMore() {
					more = &p.Pagination
				}
			}

			printJobs(a, jobs)
			a.printf("%d of %d jobs\n", len(jobs), total)
			if more != nil {
				a.printf("Page %d of %d. Use --page %d for more.\n", more.CurrentPage, more.LastPage, more.CurrentPage+1)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page to fetch")
	cmd.Flags().BoolVar(&all, "all", false, "Fetch every page")
	cmd.Flags().Int64Var(&filter.CategoryID, "category", 0, "Only jobs in this category")
	cmd.Flags().StringVar(&filter.Search, "search", "", "Search title and description")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only jobs with this status")
	cmd.Flags().IntVar(&filter.PerPage, "per-page", 0, "Page size")

	cmd.AddCommand(
		newJobShowCommand(opts),
		newJobApplyCommand(opts),
		newJobPostCommand(opts),
	)
	return cmd
}

func newJobShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}

			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireSession(); err != nil {
				return err
			}

			job, err := a.client.Jobs.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			a.printf("#%d %s\n", job.ID, job.Title)
			if job.Category != nil {
				a.printf("Category:     %s\n", job.Category.Name)
			}
			a.printf("Location:     %s\n", job.Location)
			a.printf("Budget:       %.2f\n", job.Budget)
			a.printf("Status:       %s\n", job.Status)
			a.printf("Applications: %d\n", job.ApplicationsCount)
			if job.Description != "" {
				a.printf("\n%s\n", job.Description)
			}
			return nil
		},
	}
}

func newJobApplyCommand(opts *rootOptions) *cobra.Command {
	var params fundi.ApplyParams

	cmd := &cobra.Command{
		Use:   "apply <job-id>",
		Short: "Apply for a job as a fundi",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}

			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireSession(); err != nil {
				return err
			}

			application, err := a.client.Jobs.Apply(cmd.Context(), id, &params)
			if err != nil {
				if fields := fundi.FieldErrors(err); len(fields) > 0 {
					printFieldErrors(a, fields)
				}
				return err
			}
			a.printf("Application %d submitted for job %d (%s)\n", application.ID, application.JobID, application.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&params.Message, "message", "m", "", "Cover message")
	cmd.Flags().Float64Var(&params.ProposedAmount, "amount", 0, "Proposed amount")
	return cmd
}

func newJobPostCommand(opts *rootOptions) *cobra.Command {
	var params fundi.CreateJobParams

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a job as a customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireSession(); err != nil {
				return err
			}

			job, err := a.client.Jobs.Create(cmd.Context(), &params)
			if err != nil {
				if fields := fundi.FieldErrors(err); len(fields) > 0 {
					printFieldErrors(a, fields)
				}
				return err
			}
			a.printf("Posted job #%d %s\n", job.ID, job.Title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&params.Title, "title", "t", "", "Job title")
	cmd.Flags().StringVarP(&params.Description, "description", "d", "", "Job description")
	cmd.Flags().Int64Var(&params.CategoryID, "category", 0, "Category ID")
	cmd.Flags().StringVar(&params.Location, "location", "", "Where the work is")
	cmd.Flags().Float64Var(&params.Budget, "budget", 0, "Budget")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func printJobs(a *app, jobs []fundi.Job) {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tLOCATION\tBUDGET\tSTATUS")
	for _, j := range jobs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%s\n", j.ID, j.Title, j.Location, j.Budget, j.Status)
	}
	_ = w.Flush()
}

func parseJobID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", s)
	}
	return id, nil
}
