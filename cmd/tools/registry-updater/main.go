// Command registry-updater lists, validates and edits the activity registry.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"employability-workers/internal/common/validation"
	"employability-workers/pkg/registry"
)

const defaultPath = "configs/activity-registry.json"

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	path := fs.String("path", defaultPath, "Path to registry file")
	id := fs.String("id", "", "Activity ID")
	field := fs.String("field", "", "Field to update (status, version, timeout, retries)")
	value := fs.String("value", "", "New value for the field")

	var err error
	switch os.Args[1] {
	case "list":
		fs.Parse(os.Args[2:])
		err = listActivities(*path)
	case "validate":
		fs.Parse(os.Args[2:])
		err = validateRegistry(*path)
	case "update":
		fs.Parse(os.Args[2:])
		if *id == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			fs.Usage()
			os.Exit(1)
		}
		err = updateActivity(*path, *id, *field, *value)
	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func listActivities(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}
	acts := append([]registry.Activity(nil), reg.Activities...)
	sort.Slice(acts, func(i, j int) bool { return acts[i].TaskType < acts[j].TaskType })
	for _, a := range acts {
		fmt.Printf("%-24s %-10s %-10s timeout=%s retries=%d\n", a.TaskType, a.Category, a.Status, a.Timeout, a.Retries)
	}
	return nil
}

// validateRegistry checks structure and that every input/output schema compiles.
func validateRegistry(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}
	if len(reg.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}
	if err := reg.Validate(); err != nil {
		return err
	}

	for _, a := range reg.Activities {
		for kind, schema := range map[string]map[string]interface{}{"input": a.InputSchema, "output": a.OutputSchema} {
			if len(schema) == 0 {
				continue
			}
			if _, err := validation.Compile(schema); err != nil {
				return fmt.Errorf("activity %s: %s schema: %w", a.ID, kind, err)
			}
		}
	}

	fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))
	return nil
}

func updateActivity(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}

	var target *registry.Activity
	for i := range reg.Activities {
		if reg.Activities[i].ID == id {
			target = &reg.Activities[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "status":
		status := registry.Status(value)
		if !status.Known() {
			return fmt.Errorf("unknown status: %s", value)
		}
		target.Status = status
	case "version":
		target.Version = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		target.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		target.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.LastUpdated = time.Now().Format("2006-01-02")
	if err := reg.Validate(); err != nil {
		return err
	}
	if err := reg.Save(path); err != nil {
		return err
	}
	fmt.Printf("Updated activity %s, field %s to %s\n", id, field, value)
	return nil
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  list      List registered activities
  validate  Validate the registry file and its schemas
  update    Update an activity's status, version, timeout or retries

Examples:
  registry-updater validate -path configs/activity-registry.json
  registry-updater update -id train-model -field timeout -value 15m`)
}
