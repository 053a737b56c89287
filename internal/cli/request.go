package cli

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/lodego/webstuff/pkg/headers"
	"github.com/lodego/webstuff/pkg/urlbuilder"
	"github.com/lodego/webstuff/pkg/webservice"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var requestMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

type requestFlags struct {
	headers []string
	query   []string
	data    string
	bearer  string
	user    string
	log     bool
	sel     string
	output  string
}

func newRequestCommand(a *app, method string) *cobra.Command {
	f := &requestFlags{}
	name := strings.ToLower(method)
	cmd := &cobra.Command{
		Use:   name + " <endpoint>",
		Short: fmt.Sprintf("Send a %s request", method),
		Long: fmt.Sprintf(`Send a %s request and print the decoded response.

The endpoint is joined with the base URL, unless it is an absolute URL.

Examples:
  webstuff %s get -q page=2 -H X-Test-Header=test-value
  webstuff %s https://httpbin.org/anything --bearer my-token --select headers
  webstuff %s anything -d '{"test_key":"test_value"}' --output yaml`, method, name, name, name),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.sendRequest(cmd.Context(), method, args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&f.headers, "header", "H", nil, "request header key=value, repeatable")
	flags.StringArrayVarP(&f.query, "query", "q", nil, "query parameter key=value, repeatable, kept in order")
	flags.StringVarP(&f.data, "data", "d", "", "JSON body")
	flags.StringVar(&f.bearer, "bearer", "", "bearer token")
	flags.StringVar(&f.user, "user", "", "basic auth credentials user:password")
	flags.BoolVar(&f.log, "log", false, "log the response status")
	flags.StringVar(&f.sel, "select", "", "print only the value at the gjson path")
	flags.StringVarP(&f.output, "output", "o", outputJSON, "output format: json, yaml, dump")
	return cmd
}

func (a *app) sendRequest(ctx context.Context, method, endpoint string, f *requestFlags) error {
	if err := validateOutput(f.output); err != nil {
		return err
	}

	// Headers
	pairs, err := parsePairs("header", f.headers)
	if err != nil {
		return err
	}
	h := headers.New()
	for _, p := range pairs {
		h.Set(p.Key, p.Value.(string))
	}
	if f.bearer != "" || f.user != "" {
		username, password, _ := strings.Cut(f.user, ":")
		if err := h.Authorization(headers.Credentials{Bearer: f.bearer, Username: username, Password: password}); err != nil {
			return err
		}
	}

	// URL
	params, err := parsePairs("query", f.query)
	if err != nil {
		return err
	}
	var url string
	if strings.Contains(endpoint, "://") {
		url = urlbuilder.AddQueryParams(endpoint, params...)
	} else {
		url = urlbuilder.New(a.cfg.BaseURL).Build(endpoint, params...)
	}

	// Body
	opts := webservice.Options{Headers: h.Map(), Log: f.log}
	if f.data != "" {
		var body any
		if err := json.UnmarshalFromString(f.data, &body); err != nil {
			return fmt.Errorf(`%w: data is not valid JSON: %w`, ErrInvalidArgument, err)
		}
		opts.JSON = body
	}

	svc := webservice.New(a.sender(), a.newLogger(webservice.LoggerName))
	var result any
	switch method {
	case http.MethodGet:
		result, err = svc.Get(ctx, url, opts)
	case http.MethodPost:
		result, err = svc.Post(ctx, url, opts)
	case http.MethodPut:
		result, err = svc.Put(ctx, url, opts)
	case http.MethodDelete:
		result, err = svc.Delete(ctx, url, opts)
	default:
		return fmt.Errorf(`unexpected method "%s"`, method)
	}
	if err != nil {
		return err
	}

	return writeResult(a.stdout, result, f.sel, f.output)
}

// parsePairs converts "key=value" arguments to parameters, the order is kept.
func parsePairs(kind string, args []string) ([]urlbuilder.Param, error) {
	out := make([]urlbuilder.Param, 0, len(args))
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf(`%w: %s "%s" must be in the form key=value`, ErrInvalidArgument, kind, arg)
		}
		out = append(out, urlbuilder.Param{Key: strings.TrimSpace(key), Value: value})
	}
	return out, nil
}
