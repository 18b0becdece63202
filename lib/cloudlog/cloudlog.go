// Package cloudlog uploads QSOs to a Cloudlog instance through its API.
package cloudlog

import (
	"context"
	"errors"
	"fmt"
	"qthlookup/lib/restyutil"
	"qthlookup/lib/telemetry"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("qthlookup.lib.cloudlog")

var ErrUploadRejected = errors.New("cloudlog: upload rejected")

type Client struct {
	Http             *resty.Client
	apiKey           string
	stationProfileId string
}

type ClientOptions struct {
	BaseUrl          string
	ApiKey           string
	StationProfileId string
	HttpOutput       restyutil.InstrumentOutput
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		return nil, fmt.Errorf("cloudlog: base url is not set")
	}
	if opts.ApiKey == "" {
		return nil, fmt.Errorf("cloudlog: api key is not set")
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetTimeout(time.Second * 30)
	restyutil.InstrumentClient(client, restyutil.Options{
		Tracer: tracer,
		Output: opts.HttpOutput,
	})

	return &Client{
		Http:             client,
		apiKey:           opts.ApiKey,
		stationProfileId: opts.StationProfileId,
	}, nil
}

type qsoRequest struct {
	Key              string `json:"key"`
	StationProfileId string `json:"station_profile_id"`
	Type             string `json:"type"`
	String           string `json:"string"`
}

type qsoResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// UploadQSO sends a single ADIF record.
func (c *Client) UploadQSO(ctx context.Context, record string) error {
	ctx, span := tracer.Start(ctx, "client:UploadQSO")
	defer span.End()

	var result qsoResponse
	res, err := c.Http.R().
		SetContext(ctx).
		SetBody(qsoRequest{
			Key:              c.apiKey,
			StationProfileId: c.stationProfileId,
			Type:             "adif",
			String:           record,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/index.php/api/qso")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post qso")
		return err
	}

	if res.IsError() || result.Status == "failed" {
		reason := result.Reason
		if reason == "" {
			reason = res.String()
		}
		err = fmt.Errorf("%w (status %d): %s", ErrUploadRejected, res.StatusCode(), reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, "qso rejected")
		return err
	}
	return nil
}
