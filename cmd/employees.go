package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/officeflow/attendance/internal/config"
	"github.com/officeflow/attendance/internal/database"
	"github.com/officeflow/attendance/internal/database/postgres"
)

var employeesCmd = &cobra.Command{
	Use:   "employees",
	Short: "Inspect the employee directory",
}

var employeesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled employees",
	RunE:  runEmployeesList,
}

var employeesCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of enrolled employees",
	RunE:  runEmployeesCount,
}

func init() {
	rootCmd.AddCommand(employeesCmd)
	employeesCmd.AddCommand(employeesListCmd)
	employeesCmd.AddCommand(employeesCountCmd)

	employeesListCmd.Flags().Int("limit", 100, "Maximum number of employees to list")
	employeesListCmd.Flags().String("name", "", "Search by full name instead of listing (diacritics and dashes ignored)")
}

func openDirectory() (*postgres.DirectoryRepository, *postgres.Pool, error) {
	cfg := config.Load()
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return postgres.NewDirectoryRepository(pool), pool, nil
}

func runEmployeesList(cmd *cobra.Command, args []string) error {
	directory, pool, err := openDirectory()
	if err != nil {
		return err
	}
	defer pool.Close()

	var employees []database.StoredEmployee
	if name := mustGetString(cmd, "name"); name != "" {
		employees, err = directory.FindByName(context.Background(), name)
		if err != nil {
			return fmt.Errorf("searching employees by name: %w", err)
		}
	} else {
		employees, err = directory.List(context.Background(), mustGetInt(cmd, "limit"))
		if err != nil {
			return fmt.Errorf("listing employees: %w", err)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tNAME\tDEPARTMENT\tDIM\tDEVICE\tENROLLED")
	for _, e := range employees {
		device := "-"
		if e.DeviceID != "" {
			device = "bound"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.Email, e.FullName, e.Department, e.Dim, device, e.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func runEmployeesCount(cmd *cobra.Command, args []string) error {
	directory, pool, err := openDirectory()
	if err != nil {
		return err
	}
	defer pool.Close()

	count, err := directory.Count(context.Background())
	if err != nil {
		return fmt.Errorf("counting employees: %w", err)
	}
	fmt.Printf("%d employees enrolled\n", count)
	return nil
}
