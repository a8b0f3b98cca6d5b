package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"fieldops/internal/model"
)

func runLoads(args []string) error {
	fs := flag.NewFlagSet("loads", flag.ContinueOnError)
	common := addCommonFlags(fs)
	status := fs.String("status", model.LoadStatusCarrierChosen.String(), "load status: "+strings.Join(statusNames(model.AllLoadStatuses()), "|"))
	all := fs.Bool("all", false, "fetch every browse tab concurrently")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := loadEnv(common)
	if err != nil {
		return err
	}
	defer e.close()
	session, err := e.session()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if *all {
		byStatus, err := e.client.LoadsByStatus(ctx, session.Driver, model.BrowseStatuses)
		if err != nil {
			return err
		}
		if *jsonOut {
			out := make(map[string][]model.Load, len(byStatus))
			for s, loads := range byStatus {
				out[s.String()] = loads
			}
			return printJSON(out)
		}
		for _, s := range model.BrowseStatuses {
			fmt.Printf("%s (%d)\n", s, len(byStatus[s]))
			printLoadTable(byStatus[s])
			fmt.Println()
		}
		return nil
	}

	st, err := model.ParseLoadStatus(*status)
	if err != nil {
		return err
	}
	loads, err := e.client.Loads(ctx, session.Driver, st)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(loads)
	}
	if len(loads) == 0 {
		fmt.Printf("no %s loads\n", st)
		return nil
	}
	printLoadTable(loads)
	return nil
}

func printLoadTable(loads []model.Load) {
	if len(loads) == 0 {
		fmt.Println("  (none)")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "LOAD\tSTATUS\tPICKUP\tDELIVERY\tOPENS")
	for _, l := range loads {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.LoadID, l.Status, l.LocPickup, l.LocDelivery, model.ScreenFor(l.Status))
	}
	_ = tw.Flush()
}

func statusNames(statuses []model.LoadStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, s.String())
	}
	return out
}

func runDelivery(args []string) error {
	fs := flag.NewFlagSet("delivery", flag.ContinueOnError)
	common := addCommonFlags(fs)
	loadID := fs.String("load", "", "load id")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	id := strings.TrimSpace(*loadID)
	if id == "" {
		var err error
		id, err = promptRequired("load id")
		if err != nil {
			return err
		}
	}

	e, err := loadEnv(common)
	if err != nil {
		return err
	}
	defer e.close()
	ctx, cancel := signalContext()
	defer cancel()

	details, err := e.client.Delivery(ctx, model.ID(id))
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(details)
	}
	printDelivery(id, details)
	return nil
}

func printDelivery(loadID string, details []model.DeliveryDetail) {
	fmt.Printf("Delivery details for load %s\n", loadID)
	if len(details) == 0 {
		fmt.Println("  no delivery details recorded")
		return
	}
	for _, d := range details {
		fmt.Printf("  %s\n  %s\n", kv("Driver Name", d.DriverName), kv("Driver Phone", d.DriverPhone))
	}
}

// runOpen routes a load to the screen its status selects.
func runOpen(args []string) error {
	fs := flag.NewFlagSet("open", flag.ContinueOnError)
	common := addCommonFlags(fs)
	loadID := fs.String("load", "", "load id")
	status := fs.String("status", "", "load status (looked up when omitted)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	id := strings.TrimSpace(*loadID)
	if id == "" {
		return errors.New("--load is required")
	}

	e, err := loadEnv(common)
	if err != nil {
		return err
	}
	load := model.Load{LoadID: model.ID(id)}
	if strings.TrimSpace(*status) != "" {
		st, err := model.ParseLoadStatus(*status)
		if err != nil {
			e.close()
			return err
		}
		load.Status = st
	} else {
		found, err := findLoad(e, load.LoadID)
		if err != nil {
			e.close()
			return err
		}
		load = found
	}
	e.close()

	passthrough := []string{"--config", e.configPath}
	if s := strings.TrimSpace(*common.server); s != "" {
		passthrough = append(passthrough, "--server", s)
	}
	switch model.ScreenFor(load.Status) {
	case model.ScreenPhotoChecklist:
		return runCapture(append(passthrough, "--load", id))
	case model.ScreenDeliveryDetail:
		return runDelivery(append(passthrough, "--load", id))
	default:
		printLoadSummary(load)
		return nil
	}
}

func findLoad(e *env, id model.ID) (model.Load, error) {
	session, err := e.session()
	if err != nil {
		return model.Load{}, err
	}
	ctx, cancel := signalContext()
	defer cancel()
	byStatus, err := e.client.LoadsByStatus(ctx, session.Driver, model.AllLoadStatuses())
	if err != nil {
		return model.Load{}, err
	}
	for _, s := range model.AllLoadStatuses() {
		for _, l := range byStatus[s] {
			if l.LoadID == id {
				return l, nil
			}
		}
	}
	return model.Load{}, fmt.Errorf("load %s not found for driver %s", id, session.Driver.DriverID)
}

func printLoadSummary(l model.Load) {
	fmt.Printf("%s Screen\n", l.Status)
	fmt.Println(kv("Load ID", l.LoadID.String()))
	fmt.Println(kv("Status", l.Status.String()))
	if l.LocPickup != "" {
		fmt.Println(kv("Pickup", l.LocPickup))
	}
	if l.LocDelivery != "" {
		fmt.Println(kv("Delivery", l.LocDelivery))
	}
}
