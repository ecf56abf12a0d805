package main

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

const defaultBase = "http://localhost:3001"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	base := os.Getenv("API_BASE")
	if base == "" {
		base = defaultBase
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	// Identity
	case "identity-verify":
		identityVerify(base, args)
	case "identity-status":
		get(base + "/identity/status?ownerKey=" + url.QueryEscape(mustArg(args, 0)))
	case "identity-revoke":
		revoke(base, args)

	// Reports
	case "report-submit":
		reportSubmit(base, args)
	case "report-get":
		get(base + "/reports/" + url.PathEscape(mustArg(args, 0)))
	case "reports-nearby":
		nearby(base, args)
	case "reports-recent":
		get(base + "/reports/recent")

	// Operations
	case "health":
		get(base + "/health")
	case "network":
		get(base + "/network")
	case "balance":
		get(base + "/relayer/balance?refresh=true")
	case "estimate":
		get(base + "/relayer/estimate")

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`Usage: cli <command> [options]

Commands:
  identity-verify  -image ci.jpg -number 1234567 -exp LP -first Ana -last Quispe -dob 1990-01-01 -owner 0x...
                                           POST /identity/verify
  identity-status  <ownerKey>              GET  /identity/status
  identity-revoke  -token JWT -d '{"commitment":"...","reason":"..."}'
                                           POST /identity/revoke

  report-submit    -photo p.jpg -category 0 -lat -16.5 -long -68.15 [-proof proof.json]
                                           POST /reports (without -proof a devMode proof is generated)
  report-get       <reportId>              GET  /reports/:id
  reports-nearby   -lat -16.5 -long -68.15 [-radius 5]
                                           GET  /reports/nearby
  reports-recent                           GET  /reports/recent

  health                                   GET  /health
  network                                  GET  /network
  balance                                  GET  /relayer/balance
  estimate                                 GET  /relayer/estimate

Environment:
  API_BASE   override default ` + defaultBase + `
` + "\n")
}

func mustArg(args []string, idx int) string {
	if len(args) <= idx {
		fmt.Fprintf(os.Stderr, "missing argument %d\n", idx+1)
		usage()
		os.Exit(1)
	}
	return args[idx]
}

func identityVerify(base string, args []string) {
	fs := flag.NewFlagSet("identity-verify", flag.ExitOnError)
	image := fs.String("image", "", "document photo (jpeg or png)")
	number := fs.String("number", "", "CI number")
	exp := fs.String("exp", "LP", "department code")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	dob := fs.String("dob", "", "date of birth YYYY-MM-DD")
	owner := fs.String("owner", "", "owner key 0x...")
	_ = fs.Parse(args)

	postMultipart(base+"/identity/verify", map[string]string{
		"documentNumber": *number,
		"expedition":     *exp,
		"firstName":      *first,
		"lastName":       *last,
		"dateOfBirth":    *dob,
		"ownerKey":       *owner,
	}, "documentImage", *image)
}

func revoke(base string, args []string) {
	fs := flag.NewFlagSet("identity-revoke", flag.ExitOnError)
	token := fs.String("token", os.Getenv("ADMIN_TOKEN"), "admin bearer token")
	body := fs.String("d", "", "request JSON body")
	_ = fs.Parse(args)

	req, err := http.NewRequest(http.MethodPost, base+"/identity/revoke", bytes.NewBufferString(*body))
	if err != nil {
		fmt.Println("req:", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+*token)
	send(req)
}

func reportSubmit(base string, args []string) {
	fs := flag.NewFlagSet("report-submit", flag.ExitOnError)
	photo := fs.String("photo", "", "report photo (jpeg or png)")
	category := fs.String("category", "0", "category 0-4")
	description := fs.String("description", "", "optional description")
	lat := fs.Float64("lat", -16.5, "latitude")
	long := fs.Float64("long", -68.15, "longitude")
	proofFile := fs.String("proof", "", "file with {proof, publicSignals}")
	_ = fs.Parse(args)

	proof, err := loadProof(*proofFile)
	if err != nil {
		fmt.Println("proof:", err)
		os.Exit(1)
	}
	location, _ := json.Marshal(map[string]float64{"lat": *lat, "long": *long, "accuracy": 10})

	postMultipart(base+"/reports", map[string]string{
		"category":    *category,
		"description": *description,
		"location":    string(location),
		"zkProof":     proof,
	}, "photo", *photo)
}

// loadProof reads a proof file or builds a structurally valid one for devMode servers.
func loadProof(path string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		return string(data), err
	}
	nullifier, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 248))
	if err != nil {
		return "", err
	}
	proof := make([]string, 8)
	for i := range proof {
		proof[i] = "1"
	}
	data, err := json.Marshal(map[string]any{
		"proof":         proof,
		"publicSignals": []string{nullifier.String(), "1", "1", "1"},
	})
	return string(data), err
}

func nearby(base string, args []string) {
	fs := flag.NewFlagSet("reports-nearby", flag.ExitOnError)
	lat := fs.Float64("lat", -16.5, "latitude")
	long := fs.Float64("long", -68.15, "longitude")
	radius := fs.Float64("radius", 5, "radius in km")
	_ = fs.Parse(args)

	q := url.Values{}
	q.Set("lat", fmt.Sprint(*lat))
	q.Set("long", fmt.Sprint(*long))
	q.Set("radiusKm", fmt.Sprint(*radius))
	get(base + "/reports/nearby?" + q.Encode())
}

func get(url string) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		fmt.Println("req:", err)
		os.Exit(1)
	}
	send(req)
}

func postMultipart(url string, fields map[string]string, fileField, filePath string) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v != "" {
			_ = w.WriteField(k, v)
		}
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			fmt.Println("file:", err)
			os.Exit(1)
		}
		part, _ := w.CreateFormFile(fileField, filepath.Base(filePath))
		_, _ = part.Write(data)
	}
	_ = w.Close()

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		fmt.Println("req:", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	send(req)
}

func send(req *http.Request) {
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("do:", err)
		os.Exit(1)
	}
	defer res.Body.Close()

	fmt.Printf("→ %s %s\n", req.Method, req.URL)
	fmt.Printf("← %d %s\n\n", res.StatusCode, http.StatusText(res.StatusCode))
	_, _ = io.Copy(os.Stdout, res.Body)
	fmt.Println()
}
