package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "init":
		return runInit(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "login":
		return runLogin(args[1:])
	case "logout":
		return runLogout(args[1:])
	case "loads":
		return runLoads(args[1:])
	case "browse":
		return runBrowse(args[1:])
	case "open":
		return runOpen(args[1:])
	case "delivery":
		return runDelivery(args[1:])
	case "capture":
		return runCapture(args[1:])
	case "serve":
		return runServe(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("fieldops: freight load browser and pickup photo capture")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  fieldops init")
	fmt.Println("  fieldops login --username <name>")
	fmt.Println("  fieldops browse")
	fmt.Println("  fieldops capture --load <load-id>")
	fmt.Println()
	fmt.Println("Driver Commands:")
	fmt.Println("  login     authenticate and store the driver session")
	fmt.Println("  logout    forget the stored driver session")
	fmt.Println("  loads     list loads by status")
	fmt.Println("  browse    interactive load browser (status tabs)")
	fmt.Println("  open      open the screen for a load's status")
	fmt.Println("  delivery  show delivery contacts for a load")
	fmt.Println("  capture   pickup photo checklist and batch upload")
	fmt.Println()
	fmt.Println("Setup Commands:")
	fmt.Println("  init      write a default config + run preflight checks")
	fmt.Println("  doctor    run config, camera, staging and server checks")
	fmt.Println("  serve     run the local development backend")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Config: $FIELDOPS_CONFIG or --config; $FIELDOPS_SERVER overrides the server")
}
