// Package openapi resolves a discovered service URL into a parsed OpenAPI
// document: direct-JSON fetch when the URL already looks like a spec,
// Swagger-UI HTML scraping otherwise.
package openapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/team-Plog/plog-sub000/pkg/models"
	sharederrors "github.com/team-Plog/plog-sub000/pkg/shared/errors"
)

// directSpecPaths identifies URLs that are themselves an OpenAPI document
// rather than a Swagger UI page.
var directSpecPaths = []string{
	"/v2/api-docs", "/v3/api-docs", "/swagger.json", "/openapi.json", "/api-docs.json",
}

// excludedOrigins are example/demo domains the UI strategy's candidate
// ranking must never resolve to.
var excludedOrigins = map[string]bool{
	"petstore.swagger.io": true,
	"example.com":         true,
}

type Parser struct {
	httpClient *http.Client
	loader     *openapi3.Loader
}

func NewParser(httpClient *http.Client) *Parser {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Parser{httpClient: httpClient, loader: openapi3.NewLoader()}
}

// Parse resolves the document at rawURL into a spec summary and its
// endpoints, picking the direct or UI strategy by URL shape and content type.
func (p *Parser) Parse(ctx context.Context, rawURL string) (models.OpenAPISpec, []models.Endpoint, error) {
	if isDirectSpecURL(rawURL) || p.headIsStructured(ctx, rawURL) {
		return p.parseDirect(ctx, rawURL)
	}
	return p.parseUI(ctx, rawURL)
}

func isDirectSpecURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, suffix := range directSpecPaths {
		if strings.HasSuffix(u.Path, suffix) {
			return true
		}
	}
	return false
}

func (p *Parser) headIsStructured(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "yaml")
}

func (p *Parser) parseDirect(ctx context.Context, rawURL string) (models.OpenAPISpec, []models.Endpoint, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.OpenAPISpec{}, nil, sharederrors.FailedToWithDetails("parse spec url", "openapi", rawURL, err)
	}
	doc, err := p.loader.LoadFromURI(u)
	if err != nil {
		return models.OpenAPISpec{}, nil, sharederrors.FailedToWithDetails("load openapi document", "openapi", rawURL, err)
	}
	return summarize([]*openapi3.T{doc}, rawURL)
}

func (p *Parser) parseUI(ctx context.Context, swaggerUIURL string) (models.OpenAPISpec, []models.Endpoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, swaggerUIURL, nil)
	if err != nil {
		return models.OpenAPISpec{}, nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return models.OpenAPISpec{}, nil, sharederrors.NetworkError("fetch swagger ui", swaggerUIURL, err)
	}
	defer resp.Body.Close()

	body := make([]byte, 0, 64*1024)
	buf := make([]byte, 8192)
	for {
		n, readErr := resp.Body.Read(buf)
		body = append(body, buf[:n]...)
		if readErr != nil {
			break
		}
	}
	html := string(body)

	candidates := extractCandidateURLs(html, swaggerUIURL)
	ranked := rankCandidates(candidates, swaggerUIURL)
	if len(ranked) == 0 {
		base, err := url.Parse(swaggerUIURL)
		if err != nil {
			return models.OpenAPISpec{}, nil, sharederrors.FailedToWithDetails("guess api-docs url", "openapi", swaggerUIURL, err)
		}
		ranked = []string{fmt.Sprintf("%s://%s/v3/api-docs", base.Scheme, base.Host)}
	}

	var docs []*openapi3.T
	for _, candidate := range ranked {
		cu, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		doc, err := p.loader.LoadFromURI(cu)
		if err != nil {
			continue
		}
		if doc.OpenAPI == "" && doc.Info == nil {
			continue
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return models.OpenAPISpec{}, nil, sharederrors.FailedToWithDetails("find openapi spec", "openapi", swaggerUIURL, fmt.Errorf("no candidate URL returned a valid document: %s", strings.Join(ranked, ", ")))
	}

	return summarize(docs, ranked[0])
}

var (
	dataURLRe     = regexp.MustCompile(`(?i)id=["']swagger-ui["'][^>]*\bdata-url=["']([^"']+)["']`)
	bundleBlockRe = regexp.MustCompile(`(?s)SwaggerUIBundle\(\s*\{(.*?)\}\s*\)`)
	urlFieldRe    = regexp.MustCompile(`\burl\s*:\s*["']([^"']+)["']`)
	urlsArrayRe   = regexp.MustCompile(`(?s)\burls\s*:\s*\[(.*?)\]`)
	initializerRe = regexp.MustCompile(`(?i)<script[^>]+src=["']([^"']*swagger[^"']*initializer[^"']*)["']`)
)

func extractCandidateURLs(html, baseURL string) []string {
	var urls []string

	if m := dataURLRe.FindStringSubmatch(html); m != nil {
		urls = append(urls, resolveRelative(baseURL, m[1]))
	}

	for _, block := range bundleBlockRe.FindAllStringSubmatch(html, -1) {
		urls = append(urls, extractURLFields(block[1], baseURL)...)
	}

	return urls
}

func extractURLFields(block, baseURL string) []string {
	var urls []string
	for _, m := range urlFieldRe.FindAllStringSubmatch(block, -1) {
		urls = append(urls, resolveRelative(baseURL, m[1]))
	}
	for _, arr := range urlsArrayRe.FindAllStringSubmatch(block, -1) {
		for _, m := range urlFieldRe.FindAllStringSubmatch(arr[1], -1) {
			urls = append(urls, resolveRelative(baseURL, m[1]))
		}
	}
	return urls
}

func resolveRelative(baseURL, ref string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(rel).String()
}

func rankCandidates(candidates []string, originURL string) []string {
	origin, _ := url.Parse(originURL)

	seen := map[string]bool{}
	var unique []string
	for _, c := range candidates {
		u, err := url.Parse(c)
		if err != nil || excludedOrigins[u.Hostname()] {
			continue
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		unique = append(unique, c)
	}

	score := func(c string) int {
		u, err := url.Parse(c)
		if err != nil {
			return 0
		}
		s := 0
		if origin != nil && u.Scheme == origin.Scheme && u.Host == origin.Host {
			s += 10
		}
		path := strings.ToLower(u.Path)
		if strings.Contains(path, "/v3/api-docs") {
			s += 5
		}
		if strings.HasSuffix(path, "/swagger.json") || strings.HasSuffix(path, "/openapi.json") {
			s += 5
		}
		return s
	}

	sort.SliceStable(unique, func(i, j int) bool {
		si, sj := score(unique[i]), score(unique[j])
		if si != sj {
			return si > sj
		}
		return unique[i] < unique[j]
	})
	return unique
}

// summarize extracts (title, version, base_url, tags, endpoints) from one or
// more parsed documents, merging endpoints across documents the UI strategy
// loaded from multiple candidate URLs.
func summarize(docs []*openapi3.T, fallbackURL string) (models.OpenAPISpec, []models.Endpoint, error) {
	primary := docs[0]

	title := "Untitled"
	version := "unknown"
	if primary.Info != nil {
		if primary.Info.Title != "" {
			title = primary.Info.Title
		}
		if primary.Info.Version != "" {
			version = primary.Info.Version
		}
	}

	spec := models.OpenAPISpec{
		Title:   title,
		Version: version,
		BaseURL: determineBaseURL(primary, fallbackURL),
	}

	tagDescriptions := map[string]string{}
	var endpoints []models.Endpoint
	for _, doc := range docs {
		for _, tag := range doc.Tags {
			if tag.Name == "" {
				continue
			}
			if _, ok := tagDescriptions[tag.Name]; !ok {
				tagDescriptions[tag.Name] = tag.Description
			}
		}
		endpoints = append(endpoints, extractEndpoints(doc, tagDescriptions)...)
	}

	return spec, endpoints, nil
}

func determineBaseURL(doc *openapi3.T, fallbackURL string) string {
	if len(doc.Servers) > 0 && doc.Servers[0].URL != "" {
		return doc.Servers[0].URL
	}
	u, err := url.Parse(fallbackURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fallbackURL
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
}

func extractEndpoints(doc *openapi3.T, tagDescriptions map[string]string) []models.Endpoint {
	var endpoints []models.Endpoint
	if doc.Paths == nil {
		return endpoints
	}

	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			tagName := "Default"
			if len(op.Tags) > 0 {
				tagName = op.Tags[0]
			}

			endpoint := models.Endpoint{
				Path:           path,
				Method:         strings.ToUpper(method),
				Summary:        op.Summary,
				Description:    op.Description,
				TagName:        tagName,
				TagDescription: tagDescriptions[tagName],
			}

			for _, paramRef := range op.Parameters {
				if paramRef.Value == nil {
					continue
				}
				param := parameterFromOpenAPI(paramRef.Value)
				if param != nil {
					endpoint.Parameters = append(endpoint.Parameters, *param)
				}
			}

			if op.RequestBody != nil {
				schema := ResolveRequestBodySchema(op.RequestBody)
				if schema != nil {
					required := op.RequestBody.Value != nil && op.RequestBody.Value.Required
					description := ""
					if op.RequestBody.Value != nil {
						description = op.RequestBody.Value.Description
					}
					endpoint.Parameters = append(endpoint.Parameters, models.Parameter{
						Kind:        models.ParameterKindRequestBody,
						Name:        "requestBody",
						Required:    required,
						ValueType:   "object",
						Title:       "Request Body",
						Description: description,
					})
				}
			}

			endpoints = append(endpoints, endpoint)
		}
	}
	return endpoints
}

func parameterFromOpenAPI(p *openapi3.Parameter) *models.Parameter {
	var kind models.ParameterKind
	switch p.In {
	case "path":
		kind = models.ParameterKindPath
	case "query":
		kind = models.ParameterKindQuery
	default:
		return nil
	}

	valueType := ""
	title := ""
	if p.Schema != nil && p.Schema.Value != nil {
		if p.Schema.Value.Type != nil && len(*p.Schema.Value.Type) > 0 {
			valueType = (*p.Schema.Value.Type)[0]
		}
		title = p.Schema.Value.Title
	}

	return &models.Parameter{
		Kind:        kind,
		Name:        p.Name,
		Required:    p.Required,
		ValueType:   valueType,
		Title:       title,
		Description: p.Description,
	}
}
