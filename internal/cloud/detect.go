// Package cloud detects which cloud the engine itself runs in by probing
// the provider instance-metadata services. The result drives the default
// provider and region used when a request or workload names neither.
package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Environment identifies where the engine process is running. A zero
// Provider means no metadata service answered; the engine then falls back
// to configuration.
type Environment struct {
	Provider     string // "aws", "gcp", "azure", ""
	Region       string
	Zone         string
	AccountID    string
	InstanceType string
	InstanceID   string
}

// Detected reports whether any provider's metadata service answered.
func (e Environment) Detected() bool { return e.Provider != "" }

const (
	awsBase   = "http://169.254.169.254"
	gcpBase   = "http://metadata.google.internal/computeMetadata/v1"
	azureBase = "http://169.254.169.254"
)

type probe struct {
	name  string
	fetch func(context.Context, *http.Client) (Environment, error)
}

// Detect probes AWS, GCP, and Azure metadata endpoints in order and returns
// the first answer. Off-cloud (all probes fail) is not an error.
func Detect(ctx context.Context, timeout time.Duration) Environment {
	client := &http.Client{Timeout: timeout}
	for _, p := range []probe{
		{"aws", fetchAWS},
		{"gcp", fetchGCP},
		{"azure", fetchAzure},
	} {
		env, err := p.fetch(ctx, client)
		if err != nil {
			slog.Debug("cloud probe failed", "provider", p.name, "error", err)
			continue
		}
		slog.Info("cloud environment detected", "provider", env.Provider, "region", env.Region)
		return env
	}
	return Environment{}
}

func fetchAWS(ctx context.Context, client *http.Client) (Environment, error) {
	return fetchAWSFrom(ctx, client, awsBase)
}

// fetchAWSFrom uses IMDSv2: a session token first, then the instance
// identity document.
func fetchAWSFrom(ctx context.Context, client *http.Client, base string) (Environment, error) {
	tokenReq, err := http.NewRequestWithContext(ctx, http.MethodPut, base+"/latest/api/token", nil)
	if err != nil {
		return Environment{}, err
	}
	tokenReq.Header.Set("X-aws-ec2-metadata-token-ttl-seconds", "60")

	token, err := readBody(client, tokenReq)
	if err != nil {
		return Environment{}, fmt.Errorf("imds token: %w", err)
	}

	docReq, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/latest/dynamic/instance-identity/document", nil)
	if err != nil {
		return Environment{}, err
	}
	docReq.Header.Set("X-aws-ec2-metadata-token", token)

	body, err := readBody(client, docReq)
	if err != nil {
		return Environment{}, fmt.Errorf("imds identity document: %w", err)
	}

	var doc struct {
		AccountID        string `json:"accountId"`
		Region           string `json:"region"`
		AvailabilityZone string `json:"availabilityZone"`
		InstanceType     string `json:"instanceType"`
		InstanceID       string `json:"instanceId"`
	}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return Environment{}, err
	}
	return Environment{
		Provider:     "aws",
		Region:       doc.Region,
		Zone:         doc.AvailabilityZone,
		AccountID:    doc.AccountID,
		InstanceType: doc.InstanceType,
		InstanceID:   doc.InstanceID,
	}, nil
}

func fetchGCP(ctx context.Context, client *http.Client) (Environment, error) {
	return fetchGCPFrom(ctx, client, gcpBase)
}

func fetchGCPFrom(ctx context.Context, client *http.Client, base string) (Environment, error) {
	get := func(path string) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Metadata-Flavor", "Google")
		return readBody(client, req)
	}

	project, err := get("/project/project-id")
	if err != nil {
		return Environment{}, err
	}
	zonePath, err := get("/instance/zone")
	if err != nil {
		return Environment{}, err
	}
	machinePath, err := get("/instance/machine-type")
	if err != nil {
		return Environment{}, err
	}

	// Zone and machine type come back as full resource paths; the region is
	// the zone minus its suffix ("us-central1-a" -> "us-central1").
	zone := lastSegment(zonePath)
	region := zone
	if idx := strings.LastIndex(zone, "-"); idx > 0 {
		region = zone[:idx]
	}

	return Environment{
		Provider:     "gcp",
		Region:       region,
		Zone:         zone,
		AccountID:    project,
		InstanceType: lastSegment(machinePath),
	}, nil
}

func fetchAzure(ctx context.Context, client *http.Client) (Environment, error) {
	return fetchAzureFrom(ctx, client, azureBase)
}

func fetchAzureFrom(ctx context.Context, client *http.Client, base string) (Environment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/metadata/instance?api-version=2021-02-01", nil)
	if err != nil {
		return Environment{}, err
	}
	req.Header.Set("Metadata", "true")

	body, err := readBody(client, req)
	if err != nil {
		return Environment{}, fmt.Errorf("azure imds: %w", err)
	}

	var doc struct {
		Compute struct {
			SubscriptionID string `json:"subscriptionId"`
			Location       string `json:"location"`
			VMSize         string `json:"vmSize"`
			VMID           string `json:"vmId"`
		} `json:"compute"`
	}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return Environment{}, err
	}
	return Environment{
		Provider:     "azure",
		Region:       doc.Compute.Location,
		AccountID:    doc.Compute.SubscriptionID,
		InstanceType: doc.Compute.VMSize,
		InstanceID:   doc.Compute.VMID,
	}, nil
}

func readBody(client *http.Client, req *http.Request) (string, error) {
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned %d", req.URL.Path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func lastSegment(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
