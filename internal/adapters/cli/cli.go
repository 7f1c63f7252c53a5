package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"logistics-backend/internal/app"
	"logistics-backend/internal/core"
)

const usage = `Available commands:
  stock [product_id] [warehouse_id]
  receive <product_id> <warehouse_id> <quantity> [note]
  transfer <product_id> <from_warehouse_id> <to_warehouse_id> <quantity> [note]
  transfers [product_id]
  transfers export <file.xlsx>
  container create [code]
  container show <id>
  container status <id> <STATUS>`

// ErrUsage is returned for an unknown command or malformed arguments.
var ErrUsage = errors.New(usage)

// Run executes a one-shot CLI command as the system actor and writes the result to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return ErrUsage
	}
	actor := app.SystemActor

	switch args[0] {
	case "stock", "st":
		ids, err := ints(args[1:], 0, 2)
		if err != nil {
			return err
		}
		filter := core.StockFilter{}
		if len(ids) > 0 {
			filter.ProductID = ids[0]
		}
		if len(ids) > 1 {
			filter.WarehouseID = ids[1]
		}
		result, err := svc.GetStockLevels(ctx, filter)
		if err != nil {
			return err
		}
		printStock(out, result.Levels)

	case "receive", "rcv":
		if len(args) < 4 {
			return ErrUsage
		}
		ids, err := ints(args[1:4], 3, 3)
		if err != nil {
			return err
		}
		entry, err := svc.ReceiveStock(ctx, actor, app.ReceiveStockRequest{
			ProductID: ids[0], WarehouseID: ids[1], Quantity: ids[2], Note: strings.Join(args[4:], " "),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Received. Product %d now holds %d in warehouse %d.\n", entry.ProductID, entry.Quantity, entry.WarehouseID)

	case "transfer", "tr":
		if len(args) < 5 {
			return ErrUsage
		}
		ids, err := ints(args[1:5], 4, 4)
		if err != nil {
			return err
		}
		result, err := svc.TransferStock(ctx, actor, app.TransferRequest{
			ProductID: ids[0], FromWarehouseID: ids[1], ToWarehouseID: ids[2], Quantity: ids[3],
			Note: strings.Join(args[5:], " "),
		})
		if err != nil {
			return err
		}
		t := result.Transfer
		fmt.Fprintf(out, "Transfer #%d recorded: %d x %s from %s to %s.\n",
			t.ID, t.Quantity, orID(t.ProductSKU, t.ProductID), orID(t.FromWarehouse, t.FromWarehouseID), orID(t.ToWarehouse, t.ToWarehouseID))

	case "transfers", "trs":
		if len(args) > 1 && args[1] == "export" {
			if len(args) != 3 {
				return ErrUsage
			}
			return exportTransfers(ctx, svc, args[2], out)
		}
		ids, err := ints(args[1:], 0, 1)
		if err != nil {
			return err
		}
		filter := core.TransferFilter{}
		if len(ids) == 1 {
			filter.ProductID = ids[0]
		}
		result, err := svc.ListTransfers(ctx, app.SystemActor, filter)
		if err != nil {
			return err
		}
		printTransfers(out, result.Transfers)

	case "container", "ct":
		return runContainer(ctx, svc, actor, args[1:], out)

	default:
		return fmt.Errorf("unknown command %q: %w", args[0], ErrUsage)
	}
	return nil
}

func runContainer(ctx context.Context, svc app.ApplicationService, actor app.Actor, args []string, out io.Writer) error {
	if len(args) == 0 {
		return ErrUsage
	}
	var (
		result *app.ContainerResult
		err    error
	)
	switch args[0] {
	case "create":
		req := app.CreateContainerRequest{}
		if len(args) > 1 {
			req.Code = args[1]
		}
		result, err = svc.CreateContainer(ctx, actor, req)
	case "show":
		if len(args) != 2 {
			return ErrUsage
		}
		id, perr := strconv.Atoi(args[1])
		if perr != nil {
			return fmt.Errorf("invalid container id %q", args[1])
		}
		result, err = svc.GetContainer(ctx, actor, id)
	case "status":
		if len(args) != 3 {
			return ErrUsage
		}
		id, perr := strconv.Atoi(args[1])
		if perr != nil {
			return fmt.Errorf("invalid container id %q", args[1])
		}
		result, err = svc.UpdateContainerStatus(ctx, actor, id, strings.ToUpper(args[2]))
	default:
		return fmt.Errorf("unknown container command %q: %w", args[0], ErrUsage)
	}
	if err != nil {
		return err
	}
	printContainer(out, result.Container)
	return nil
}

func exportTransfers(ctx context.Context, svc app.ApplicationService, path string, out io.Writer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := svc.ExportTransfers(ctx, app.SystemActor, core.TransferFilter{}, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(out, "Transfers exported to %s.\n", path)
	return nil
}

// ints parses between lo and hi positive integer arguments.
func ints(args []string, lo, hi int) ([]int, error) {
	if len(args) < lo || len(args) > hi {
		return nil, ErrUsage
	}
	out := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("expected a positive integer, got %q", a)
		}
		out[i] = n
	}
	return out, nil
}

func orID(name string, id int) string {
	if name != "" {
		return name
	}
	return "#" + strconv.Itoa(id)
}

func printStock(out io.Writer, levels []core.StockLevel) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-12s %-28s %-20s %10s\n", "SKU", "PRODUCT", "WAREHOUSE", "QUANTITY")
	fmt.Fprintln(out, strings.Repeat("-", 74))
	for _, l := range levels {
		fmt.Fprintf(out, "  %-12s %-28s %-20s %10d\n", l.ProductSKU, l.ProductName, l.WarehouseName, l.Quantity)
	}
	fmt.Fprintln(out, strings.Repeat("-", 74))
}

func printTransfers(out io.Writer, records []core.TransferRecord) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-6s %-17s %-12s %-18s %-18s %8s\n", "ID", "DATE", "SKU", "FROM", "TO", "QTY")
	fmt.Fprintln(out, strings.Repeat("-", 84))
	for _, t := range records {
		fmt.Fprintf(out, "  %-6d %-17s %-12s %-18s %-18s %8d\n",
			t.ID, t.CreatedAt.Format("2006-01-02 15:04"), t.ProductSKU, t.FromWarehouse, t.ToWarehouse, t.Quantity)
	}
	fmt.Fprintln(out, strings.Repeat("-", 84))
}

func printContainer(out io.Writer, c *core.Container) {
	fin := c.Financials
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Container : %s (id %d)\n", c.Code, c.ID)
	fmt.Fprintf(out, "  Status    : %s\n", c.Status)
	if c.CurrentWarehouse != "" {
		fmt.Fprintf(out, "  Warehouse : %s\n", c.CurrentWarehouse)
	}
	fmt.Fprintf(out, "  Products  : %d\n", fin.ProductCount)
	fmt.Fprintf(out, "  Cost      : %s\n", fin.PurchasedCost.StringFixed(2))
	fmt.Fprintf(out, "  Revenue   : %s\n", fin.ExpectedRevenue.StringFixed(2))
	fmt.Fprintf(out, "  Fees      : %s\n", fin.TotalFees.StringFixed(2))
	fmt.Fprintf(out, "  Profit    : %s\n", fin.ExpectedProfit.StringFixed(2))
}
