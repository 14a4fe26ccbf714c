// Package nuget downloads reference assemblies from a NuGet feed, so descriptors
// can be resolved on machines without the matching framework installed.
package nuget

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
	"go.uber.org/zap"
)

const DefaultIndex string = "https://api.nuget.org/v3/index.json"

var (
	ErrNoBaseAddress = errors.New("feed has no PackageBaseAddress resource")
	ErrNoVersion     = errors.New("no matching package version")
	ErrNoAssemblies  = errors.New("package contains no matching assemblies")
)

type Downloader struct {
	IndexURL string
	Client   *http.Client
	Logger   *zap.Logger
}

// Request selects a package and the assemblies to take from it.
type Request struct {
	ID string
	// Constraint is a go-version constraint such as "~> 8.0"; empty selects the
	// highest stable version.
	Constraint string
	// Framework limits extraction to lib/<Framework>/ and ref/<Framework>/.
	Framework string
	// Prerelease allows prerelease versions to be selected.
	Prerelease bool
}

type Package struct {
	ID         string
	Version    string
	Assemblies []string
}

func NewDownloader(logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{IndexURL: DefaultIndex, Client: http.DefaultClient, Logger: logger}
}

// Download fetches the selected version of the package and extracts its assemblies
// into dir, flattened by file name.
func (d *Downloader) Download(ctx context.Context, request Request, dir string) (*Package, error) {
	baseAddress, err := d.baseAddress(ctx)
	if err != nil {
		return nil, err
	}

	id := strings.ToLower(request.ID)
	chosen, err := d.selectVersion(ctx, baseAddress, id, request)
	if err != nil {
		return nil, err
	}
	d.Logger.Info("downloading package", zap.String("id", request.ID), zap.String("version", chosen))

	nugetBytes, err := d.queryGet(ctx, fmt.Sprintf("%s%s/%s/%s.%s.nupkg", baseAddress, id, chosen, id, chosen))
	if err != nil {
		return nil, err
	}

	bytesReader := bytes.NewReader(nugetBytes)
	nupkg, err := zip.NewReader(bytesReader, int64(bytesReader.Len()))
	if err != nil {
		return nil, fmt.Errorf("package %s %s is not a valid archive: %w", request.ID, chosen, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	pkg := &Package{ID: request.ID, Version: chosen}
	for _, file := range selectAssemblies(nupkg.File, request.Framework) {
		target := filepath.Join(dir, path.Base(file.Name))
		if err := extract(file, target); err != nil {
			return nil, err
		}
		pkg.Assemblies = append(pkg.Assemblies, target)
	}
	if len(pkg.Assemblies) == 0 {
		return nil, fmt.Errorf("%w: %s %s (framework %q)", ErrNoAssemblies, request.ID, chosen, request.Framework)
	}

	d.Logger.Info("extracted assemblies", zap.Int("count", len(pkg.Assemblies)), zap.String("dir", dir))
	return pkg, nil
}

func (d *Downloader) selectVersion(ctx context.Context, baseAddress, id string, request Request) (string, error) {
	versionsResponse, err := d.queryGet(ctx, fmt.Sprintf("%s%s/index.json", baseAddress, id))
	if err != nil {
		return "", err
	}
	versions, err := parse[map[string][]string](versionsResponse)
	if err != nil {
		return "", fmt.Errorf("invalid version list for %s: %w", request.ID, err)
	}

	var constraints version.Constraints
	if request.Constraint != "" {
		if constraints, err = version.NewConstraint(request.Constraint); err != nil {
			return "", fmt.Errorf("invalid version constraint %q: %w", request.Constraint, err)
		}
	}

	orderedVersions := make([]*version.Version, 0, len(versions["versions"]))
	for _, versionString := range versions["versions"] {
		v, err := version.NewVersion(versionString)
		if err != nil {
			d.Logger.Debug("skipping unparsable version", zap.String("version", versionString))
			continue
		}
		if v.Prerelease() != "" && !request.Prerelease {
			continue
		}
		if constraints != nil && !constraints.Check(v) {
			continue
		}
		orderedVersions = append(orderedVersions, v)
	}
	if len(orderedVersions) == 0 {
		return "", fmt.Errorf("%w: %s %s", ErrNoVersion, request.ID, request.Constraint)
	}

	sort.Sort(version.Collection(orderedVersions))
	return strings.ToLower(orderedVersions[len(orderedVersions)-1].Original()), nil
}

func (d *Downloader) baseAddress(ctx context.Context) (string, error) {
	response, err := d.queryGet(ctx, d.IndexURL)
	if err != nil {
		return "", err
	}
	nugetIndex, err := parse[nugetIndex](response)
	if err != nil {
		return "", fmt.Errorf("invalid service index: %w", err)
	}

	for _, resource := range nugetIndex.Resources {
		if strings.Contains(resource.Type, "PackageBaseAddress") {
			address := resource.Id
			if !strings.HasSuffix(address, "/") {
				address += "/"
			}
			return address, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoBaseAddress, d.IndexURL)
}

// wanted selects lib/ and ref/ assemblies, optionally of one target framework.
func wanted(name, framework string) bool {
	if !strings.EqualFold(path.Ext(name), ".dll") {
		return false
	}
	parts := strings.Split(name, "/")
	if len(parts) != 3 || (parts[0] != "lib" && parts[0] != "ref") {
		return false
	}
	return framework == "" || strings.EqualFold(parts[1], framework)
}

type candidate struct {
	file    *zip.File
	family  int
	version *version.Version
	ref     bool
}

// selectAssemblies keeps one entry per file name, since extraction is flat. Without a
// framework filter the highest target framework wins, and ref/ wins over lib/ for
// the same framework.
func selectAssemblies(files []*zip.File, framework string) []*zip.File {
	byName := map[string]candidate{}
	for _, file := range files {
		if !wanted(file.Name, framework) {
			continue
		}
		parts := strings.Split(file.Name, "/")
		family, v := frameworkRank(parts[1])
		next := candidate{file: file, family: family, version: v, ref: parts[0] == "ref"}

		key := strings.ToLower(parts[2])
		if current, found := byName[key]; !found || next.preferredOver(current) {
			byName[key] = next
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	selected := make([]*zip.File, 0, len(names))
	for _, name := range names {
		selected = append(selected, byName[name].file)
	}
	return selected
}

func (c candidate) preferredOver(other candidate) bool {
	if c.family != other.family {
		return c.family > other.family
	}
	if c.version != nil && other.version != nil && !c.version.Equal(other.version) {
		return c.version.GreaterThan(other.version)
	}
	return c.ref && !other.ref
}

// frameworkRank orders target framework monikers: .NET Framework (net48), then
// netstandard, netcoreapp and finally net5.0 and later. Unknown monikers rank lowest.
func frameworkRank(tfm string) (int, *version.Version) {
	tfm, _, _ = strings.Cut(strings.ToLower(tfm), "-")

	family, digits := -1, ""
	switch {
	case strings.HasPrefix(tfm, "netstandard"):
		family, digits = 1, strings.TrimPrefix(tfm, "netstandard")
	case strings.HasPrefix(tfm, "netcoreapp"):
		family, digits = 2, strings.TrimPrefix(tfm, "netcoreapp")
	case strings.HasPrefix(tfm, "net") && strings.Contains(tfm, "."):
		family, digits = 3, strings.TrimPrefix(tfm, "net")
	case strings.HasPrefix(tfm, "net"):
		family, digits = 0, strings.TrimPrefix(tfm, "net")
	}

	v, err := version.NewVersion(digits)
	if err != nil {
		return -1, nil
	}
	return family, v
}

func extract(file *zip.File, target string) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file.Name, err)
	}
	return os.WriteFile(target, data, 0o644)
}

func parse[T interface{}](source []byte) (T, error) {
	var parsedBody T
	err := json.Unmarshal(source, &parsedBody)
	return parsedBody, err
}

func (d *Downloader) queryGet(ctx context.Context, url string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	response, err := d.Client.Do(request)
	if err != nil {
		return nil, err
	}

	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, response.Status)
	}

	return io.ReadAll(response.Body)
}

type nugetIndex struct {
	Resources []nugetResource `json:"resources"`
}

type nugetResource struct {
	Id   string `json:"@id"`
	Type string `json:"@type"`
}
