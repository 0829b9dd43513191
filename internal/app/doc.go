// Package app provides application initialization and lifecycle management
// for the matchset pipeline. It wires configuration loading, logging,
// telemetry and the pipeline runner into a single container.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from the config file and MATCHSET_* variables
//	2. Initialize logging and telemetry
//	3. Assemble the pipeline steps in execution order
//	4. Run the pipeline and report the result
//	5. Flush telemetry on shutdown
//
// # Usage
//
// The main entry point is typically:
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    slog.Error("startup failed", slog.String("error", err.Error()))
//	    os.Exit(1)
//	}
//	defer application.Shutdown(context.Background())
//
//	result, err := application.Run(ctx)
//
// # Error Handling
//
// All initialization errors are returned to the caller for proper
// handling. The app does not call os.Exit() directly, allowing
// the main function to control the exit process.
package app
