package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lodego/webstuff/pkg/client"
	"github.com/lodego/webstuff/pkg/headers"
	"github.com/lodego/webstuff/pkg/urlbuilder"
	"github.com/lodego/webstuff/pkg/webservice"
)

func newDebugCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "debug",
		Short: "Send test GET and POST requests to the base URL",
		Long: `Send test GET and POST requests to the base URL and log the responses.

The base URL is expected to be an echo service such as https://httpbin.org/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.debug(cmd.Context())
		},
	}
}

func (a *app) debug(ctx context.Context) error {
	log := a.newLogger("Debug")
	log.Info("Starting debug tests...")

	sender := a.sender()
	svc := webservice.New(sender, a.newLogger(webservice.LoggerName))
	builder := urlbuilder.New(a.cfg.BaseURL)

	// Both requests run concurrently, their log lines may interleave.
	// Responses are logged after both are done, in a fixed order.
	var getResult, postResult any
	grp := client.NewRunGroup(ctx, sender)
	grp.Add(client.SendFunc(func(ctx context.Context, _ client.Sender) error {
		log.Info("Testing GET request...")
		h := headers.New().Set("X-Test-Header", "test-value")
		res, err := svc.Get(ctx, builder.Build("get"), webservice.Options{Headers: h.Map(), Log: true})
		getResult = res
		return err
	}))
	grp.Add(client.SendFunc(func(ctx context.Context, _ client.Sender) error {
		log.Info("Testing POST request...")
		data := map[string]any{"test_key": "test_value", "timestamp": a.now().Format(time.RFC3339)}
		res, err := svc.Post(ctx, builder.Build("post"), webservice.Options{Headers: headers.New().Map(), JSON: data, Log: true})
		postResult = res
		return err
	}))
	if err := grp.RunAndWait(); err != nil {
		log.Error(fmt.Sprintf("Error during debug: %s", err))
		return err
	}

	log.Info("GET response: " + pretty(getResult))
	log.Info("POST response: " + pretty(postResult))
	log.Info("Debug tests completed successfully!")
	return nil
}

func pretty(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}
