package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"field-dispatch/internal/app"
)

// ErrUsage is returned for an unknown command or missing arguments.
var ErrUsage = errors.New("usage")

const usage = `Available commands:
  transition <job-id> <status> [actor]   move a job (en_route, completed, rejected)
  accept <request-id> <technician-id>    open a job for a waiting request
  submit                                 read a service request as JSON from stdin
  jobs [status] [technician-id]          list jobs
  job <job-id>                           show a job as JSON
  backlog                                list waiting requests in dispatch order
  technicians                            list technicians and availability
  stock                                  show stock levels
  movements <sku>                        show the movement history of a SKU
  restore <sku> <qty> <reference-id>     put stock back for a cancelled job
  drafts [supplier-id]                   list draft supplier orders`

// Run executes a one-shot CLI command, writing its output to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given\n%s", ErrUsage, usage)
	}

	switch args[0] {
	case "transition", "t":
		if len(args) < 3 {
			return fmt.Errorf("%w: app transition <job-id> <status> [actor]", ErrUsage)
		}
		req := app.TransitionJobRequest{JobID: args[1], Status: args[2]}
		if len(args) > 3 {
			req.Actor = args[3]
		}
		result, err := svc.TransitionJob(ctx, req)
		if err != nil {
			return fmt.Errorf("transition failed: %w", err)
		}
		printJob(out, result)

	case "accept":
		if len(args) < 3 {
			return fmt.Errorf("%w: app accept <request-id> <technician-id>", ErrUsage)
		}
		result, err := svc.AcceptRequest(ctx, app.AcceptRequestRequest{RequestID: args[1], TechnicianID: args[2]})
		if err != nil {
			return fmt.Errorf("accept failed: %w", err)
		}
		printJob(out, result)

	case "submit":
		var req app.SubmitServiceRequestRequest
		if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		result, err := svc.SubmitServiceRequest(ctx, req)
		if err != nil {
			return fmt.Errorf("submit failed: %w", err)
		}
		fmt.Fprintf(out, "Service request %s is waiting for a technician.\n", result.Request.ID)

	case "jobs":
		var status, tech string
		if len(args) > 1 {
			status = args[1]
		}
		if len(args) > 2 {
			tech = args[2]
		}
		result, err := svc.ListJobs(ctx, status, tech)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		printJobs(out, result)

	case "job":
		if len(args) < 2 {
			return fmt.Errorf("%w: app job <job-id>", ErrUsage)
		}
		result, err := svc.GetJob(ctx, args[1])
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Job)

	case "backlog":
		result, err := svc.GetBacklog(ctx)
		if err != nil {
			return fmt.Errorf("failed to load backlog: %w", err)
		}
		printBacklog(out, result)

	case "technicians", "techs":
		result, err := svc.ListTechnicians(ctx)
		if err != nil {
			return fmt.Errorf("failed to list technicians: %w", err)
		}
		fmt.Fprintf(out, "%-12s %-24s %s\n", "ID", "NAME", "AVAILABILITY")
		for _, t := range result.Technicians {
			fmt.Fprintf(out, "%-12s %-24s %s\n", t.ID, t.Name, t.Availability)
		}

	case "stock":
		result, err := svc.GetStockLevels(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stock levels: %w", err)
		}
		printStock(out, result)

	case "movements":
		if len(args) < 2 {
			return fmt.Errorf("%w: app movements <sku>", ErrUsage)
		}
		result, err := svc.GetMovements(ctx, args[1])
		if err != nil {
			return fmt.Errorf("failed to get movements: %w", err)
		}
		printMovements(out, result)

	case "restore":
		if len(args) < 4 {
			return fmt.Errorf("%w: app restore <sku> <qty> <reference-id>", ErrUsage)
		}
		qty, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("%w: quantity must be a whole number, got %q", ErrUsage, args[2])
		}
		result, err := svc.RestoreStock(ctx, app.RestoreStockRequest{SKU: args[1], Quantity: qty, ReferenceID: args[3]})
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		if result.Replayed {
			fmt.Fprintf(out, "Already restored for %s. %s on hand: %d\n", args[3], result.SKU, result.NewQuantity)
		} else {
			fmt.Fprintf(out, "Restored %d. %s on hand: %d\n", qty, result.SKU, result.NewQuantity)
		}

	case "drafts":
		var supplier string
		if len(args) > 1 {
			supplier = args[1]
		}
		result, err := svc.ListSupplierOrders(ctx, supplier, "draft")
		if err != nil {
			return fmt.Errorf("failed to list supplier orders: %w", err)
		}
		printDrafts(out, result)

	default:
		return fmt.Errorf("%w: unknown command %s\n%s", ErrUsage, args[0], usage)
	}
	return nil
}

func printJob(out io.Writer, result *app.JobResult) {
	j := result.Job
	fmt.Fprintf(out, "Job %s is %s (technician %s, total %s)\n", j.ID, j.Status, j.TechnicianID, j.Total().StringFixed(2))
	if j.NextJobID != nil {
		fmt.Fprintf(out, "Technician redirected to job %s\n", *j.NextJobID)
	}
}

func printJobs(out io.Writer, result *app.JobListResult) {
	fmt.Fprintf(out, "%-38s %-10s %-12s %10s\n", "JOB", "STATUS", "TECHNICIAN", "TOTAL")
	fmt.Fprintln(out, strings.Repeat("-", 73))
	for _, j := range result.Jobs {
		fmt.Fprintf(out, "%-38s %-10s %-12s %10s\n", j.ID, j.Status, j.TechnicianID, j.Total().StringFixed(2))
	}
}

func printBacklog(out io.Writer, result *app.BacklogResult) {
	if len(result.Requests) == 0 {
		fmt.Fprintln(out, "Backlog is empty.")
		return
	}
	for i, r := range result.Requests {
		fmt.Fprintf(out, "%3d. %-38s %-20s %s\n", i+1, r.ID, r.ServiceType, r.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func printStock(out io.Writer, result *app.StockResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  %-16s %-24s %8s %8s\n", "SKU", "NAME", "ON HAND", "REORDER")
	fmt.Fprintln(out, strings.Repeat("-", 62))
	for _, l := range result.Levels {
		flag := ""
		switch {
		case l.Backordered:
			flag = " BACKORDER"
		case l.BelowReorder:
			flag = " LOW"
		}
		fmt.Fprintf(out, "  %-16s %-24s %8d %8d%s\n", l.SKU, l.Name, l.OnHand, l.ReorderPoint, flag)
	}
	fmt.Fprintln(out, strings.Repeat("=", 62))
}

func printMovements(out io.Writer, result *app.MovementListResult) {
	fmt.Fprintf(out, "Movements for %s\n", result.SKU)
	for _, m := range result.Movements {
		fmt.Fprintf(out, "  %s %+5d -> %5d  %s:%s  %s\n",
			m.CreatedAt.Format("2006-01-02 15:04"), m.Delta, m.QuantityAfter, m.RefType, m.RefID, m.Actor)
	}
}

func printDrafts(out io.Writer, result *app.SupplierOrderListResult) {
	if len(result.Orders) == 0 {
		fmt.Fprintln(out, "No draft supplier orders.")
		return
	}
	for _, o := range result.Orders {
		fmt.Fprintf(out, "Draft %s for %s, total %s\n", o.ID, o.SupplierID, o.TotalCost.StringFixed(2))
		for _, l := range o.Lines {
			fmt.Fprintf(out, "  %-16s %6d x %s\n", l.SKU, l.Quantity, l.UnitCost.StringFixed(2))
		}
	}
}
