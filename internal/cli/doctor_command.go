package cli

import (
	"errors"
	"flag"
	"fmt"

	"fieldops/internal/doctor"
)

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	common := addCommonFlags(fs)
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
	ctx, cancel := signalContext()
	defer cancel()

	res, err := doctor.Init(ctx, doctor.InitOptions{
		ConfigPath: e.configPath,
		Config:     e.cfg,
		Doctor:     doctor.Options{Camera: e.camera(), Server: e.client},
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}
	if res.CreatedConfig {
		fmt.Printf("config: created %s\n", res.ConfigPath)
	} else {
		fmt.Printf("config: using %s\n", res.ConfigPath)
	}
	return printChecks(res.Doctor)
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	common := addCommonFlags(fs)
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
	ctx, cancel := signalContext()
	defer cancel()

	res := doctor.Run(ctx, doctor.Options{
		Config:     e.cfg,
		ConfigPath: e.configPath,
		Camera:     e.camera(),
		Server:     e.client,
	})
	if *jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
		if !res.OK {
			return errors.New("doctor checks failed")
		}
		return nil
	}
	return printChecks(res)
}

func printChecks(res doctor.Result) error {
	for _, c := range res.Checks {
		status := "ok"
		if !c.OK {
			status = "fail"
		}
		fmt.Printf("%s: %s (%s)\n", c.Name, status, c.Message)
	}
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Println("doctor: all checks passed")
	return nil
}
