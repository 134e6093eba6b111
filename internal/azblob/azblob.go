// Package azblob talks to Azure Blob Storage so that trees can be copied to,
// listed in and removed from a container.
package azblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// Environment variables read by OptionsFromEnv.
const (
	EnvEndpoint   = "TREEOPS_AZBLOB_ENDPOINT"
	EnvAccountKey = "TREEOPS_AZBLOB_ACCOUNTKEY"
)

const (
	uploadBlockMin  = 1 << 20    // service minimum block size
	uploadBlockMax  = 4000 << 20 // service maximum block size
	uploadBlockBase = 256 << 20  // used when the stream size is unknown
	uploadMaxBlocks = 100000
)

var accountNameRe = regexp.MustCompile(`^[a-z0-9]{3,24}$`)
var containerNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)
var validBlobSuffixes = []string{
	".blob.core.windows.net",
	".blob.core.chinacloudapi.cn",
	".blob.core.usgovcloudapi.net",
	".blob.core.cloudapi.de",
	".blob.localhost",
}

// AzurePath is an az://account/container/blob location.
type AzurePath struct {
	Account   string
	Container string
	Blob      string // empty or ending in '/' for a virtual directory
}

func (p AzurePath) IsDirLike() bool { return p.Blob == "" || strings.HasSuffix(p.Blob, "/") }

func (p AzurePath) WithDir() AzurePath {
	if p.IsDirLike() {
		return p
	}
	p.Blob += "/"
	return p
}

// Child joins rel (slash separated) below p.
func (p AzurePath) Child(rel string) AzurePath {
	if p.Blob == "" {
		return AzurePath{p.Account, p.Container, rel}
	}
	return AzurePath{p.Account, p.Container, path.Clean(p.Blob + "/" + rel)}
}

func (p AzurePath) String() string {
	if p.Container == "" {
		return "az://" + p.Account
	}
	if p.Blob == "" {
		return fmt.Sprintf("az://%s/%s", p.Account, p.Container)
	}
	return fmt.Sprintf("az://%s/%s/%s", p.Account, p.Container, p.Blob)
}

// IsBlobURL reports whether raw is an http(s) blob endpoint URL with a
// container.
func IsBlobURL(raw string) bool {
	ap, err := parseURL(raw)
	return err == nil && ap.Container != ""
}

// Parse accepts az://account[/container[/blob]] and blob endpoint URLs.
func Parse(raw string) (AzurePath, error) {
	if rest, ok := strings.CutPrefix(raw, "az://"); ok {
		if rest == "" {
			return AzurePath{}, errors.New("expected az://account[/container[/blob]]")
		}
		parts := strings.SplitN(rest, "/", 3)
		ap := AzurePath{Account: parts[0]}
		if len(parts) > 1 {
			ap.Container = parts[1]
		}
		if len(parts) > 2 {
			ap.Blob = parts[2]
		}
		return ap, nil
	}
	return parseURL(raw)
}

func parseURL(raw string) (AzurePath, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return AzurePath{}, fmt.Errorf("not an az:// or blob url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return AzurePath{}, fmt.Errorf("not an az:// or blob url: %s", raw)
	}
	host := strings.ToLower(u.Hostname())
	matched := false
	for _, suffix := range validBlobSuffixes {
		if strings.HasSuffix(host, suffix) {
			matched = true
			break
		}
	}
	account, _, _ := strings.Cut(host, ".")
	if !matched || !accountNameRe.MatchString(account) {
		return AzurePath{}, fmt.Errorf("not a blob url: %s", raw)
	}
	trimmed := strings.TrimPrefix(u.Path, "/")
	if trimmed == "" {
		return AzurePath{Account: account}, nil
	}
	container, blob, _ := strings.Cut(trimmed, "/")
	if !validContainerName(container) {
		return AzurePath{}, fmt.Errorf("invalid container name: %s", container)
	}
	return AzurePath{Account: account, Container: container, Blob: blob}, nil
}

func validContainerName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	return containerNameRe.MatchString(name)
}

// Options selects the endpoint and credentials.
type Options struct {
	// Endpoint overrides https://<account>.blob.core.windows.net. A %s is
	// replaced by the account name.
	Endpoint string
	// AccountKey enables shared key auth; otherwise DefaultAzureCredential
	// is used.
	AccountKey string
}

// OptionsFromEnv reads EnvEndpoint and EnvAccountKey.
func OptionsFromEnv() Options {
	return Options{
		Endpoint:   os.Getenv(EnvEndpoint),
		AccountKey: os.Getenv(EnvAccountKey),
	}
}

// Store performs blob operations with a fixed set of Options.
type Store struct {
	opts Options
}

// New returns a Store.
func New(opts Options) *Store {
	return &Store{opts: opts}
}

func (s *Store) endpoint(account string) string {
	if ep := s.opts.Endpoint; ep != "" {
		if strings.Contains(ep, "%s") {
			return fmt.Sprintf(ep, account)
		}
		return ep
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net", account)
}

func (s *Store) client(account string) (*azblob.Client, error) {
	endpoint := s.endpoint(account)
	if s.opts.AccountKey != "" {
		cred, err := azblob.NewSharedKeyCredential(account, s.opts.AccountKey)
		if err != nil {
			return nil, err
		}
		slog.Debug("azblob client", "endpoint", endpoint, "auth", "sharedkey")
		return azblob.NewClientWithSharedKeyCredential(endpoint, cred, nil)
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	slog.Debug("azblob client", "endpoint", endpoint, "auth", "default")
	return azblob.NewClient(endpoint, cred, nil)
}

// BlobMeta is listing metadata. Name is relative to the listed prefix and
// ends in '/' for virtual directories.
type BlobMeta struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// List lists the immediate children of a directory-like path, sorted. At
// the account root it lists containers.
func (s *Store) List(ctx context.Context, ap AzurePath) ([]BlobMeta, error) {
	if ap.Container == "" {
		return s.ListContainers(ctx, ap.Account)
	}
	ap = ap.WithDir()
	all, err := s.listFlat(ctx, ap, ap.Blob)
	if err != nil {
		return nil, err
	}
	firstLevel := make(map[string]BlobMeta)
	for _, bm := range all {
		head, _, nested := strings.Cut(bm.Name, "/")
		if nested {
			firstLevel[head+"/"] = BlobMeta{Name: head + "/"}
			continue
		}
		firstLevel[head] = bm
	}
	out := make([]BlobMeta, 0, len(firstLevel))
	for _, bm := range firstLevel {
		out = append(out, bm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListRecursive lists every blob under ap, names relative to ap.
func (s *Store) ListRecursive(ctx context.Context, ap AzurePath) ([]BlobMeta, error) {
	prefix := ap.Blob
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return s.listFlat(ctx, ap, prefix)
}

func (s *Store) listFlat(ctx context.Context, ap AzurePath, prefix string) ([]BlobMeta, error) {
	client, err := s.client(ap.Account)
	if err != nil {
		return nil, err
	}
	pager := client.ServiceClient().NewContainerClient(ap.Container).NewListBlobsFlatPager(&azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	var out []BlobMeta
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			if bloberror.HasCode(err, bloberror.ContainerNotFound) {
				return nil, &fs.PathError{Op: "list", Path: ap.String(), Err: fs.ErrNotExist}
			}
			return nil, err
		}
		if resp.Segment == nil {
			break
		}
		for _, item := range resp.Segment.BlobItems {
			if item == nil || item.Name == nil || item.Properties == nil || item.Properties.ContentLength == nil {
				continue
			}
			bm := BlobMeta{
				Name: strings.TrimPrefix(*item.Name, prefix),
				Size: *item.Properties.ContentLength,
			}
			if item.Properties.LastModified != nil {
				bm.ModTime = *item.Properties.LastModified
			}
			out = append(out, bm)
		}
	}
	return out, nil
}

// ListContainers lists the containers of an account.
func (s *Store) ListContainers(ctx context.Context, account string) ([]BlobMeta, error) {
	client, err := s.client(account)
	if err != nil {
		return nil, err
	}
	pager := client.ServiceClient().NewListContainersPager(nil)
	var out []BlobMeta
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range resp.ContainerItems {
			out = append(out, BlobMeta{Name: *c.Name + "/"})
		}
	}
	return out, nil
}

// HeadBlob returns a blob's metadata.
func (s *Store) HeadBlob(ctx context.Context, ap AzurePath) (BlobMeta, error) {
	if ap.IsDirLike() {
		return BlobMeta{}, errors.New("path is directory-like")
	}
	client, err := s.client(ap.Account)
	if err != nil {
		return BlobMeta{}, err
	}
	props, err := client.ServiceClient().NewContainerClient(ap.Container).NewBlockBlobClient(ap.Blob).GetProperties(ctx, nil)
	if err != nil {
		return BlobMeta{}, mapNotFound("stat", ap, err)
	}
	bm := BlobMeta{Name: path.Base(ap.Blob)}
	if props.ContentLength != nil {
		bm.Size = *props.ContentLength
	}
	if props.LastModified != nil {
		bm.ModTime = *props.LastModified
	}
	return bm, nil
}

// DownloadStream opens a blob for reading.
func (s *Store) DownloadStream(ctx context.Context, ap AzurePath) (io.ReadCloser, error) {
	if ap.IsDirLike() {
		return nil, errors.New("cannot download directory")
	}
	client, err := s.client(ap.Account)
	if err != nil {
		return nil, err
	}
	resp, err := client.ServiceClient().NewContainerClient(ap.Container).NewBlockBlobClient(ap.Blob).DownloadStream(ctx, nil)
	if err != nil {
		return nil, mapNotFound("read", ap, err)
	}
	return resp.Body, nil
}

// UploadStream writes a blob from r, overwriting it.
func (s *Store) UploadStream(ctx context.Context, ap AzurePath, r io.Reader) error {
	if ap.IsDirLike() {
		return errors.New("cannot upload to directory-like path")
	}
	client, err := s.client(ap.Account)
	if err != nil {
		return err
	}
	size := readerSize(r)
	blockSize := uploadBlockSize(size)
	if size >= 0 && size > int64(uploadMaxBlocks)*int64(uploadBlockMax) {
		return fmt.Errorf("put %s: stream size %d too large", ap, size)
	}
	blobClient := client.ServiceClient().NewContainerClient(ap.Container).NewBlockBlobClient(ap.Blob)
	if _, err := blobClient.UploadStream(ctx, r, &azblob.UploadStreamOptions{BlockSize: blockSize}); err != nil {
		return fmt.Errorf("put %s: %w", ap, err)
	}
	return nil
}

// Delete removes one blob.
func (s *Store) Delete(ctx context.Context, ap AzurePath) error {
	if ap.IsDirLike() {
		return errors.New("path is directory-like; use DeletePrefix")
	}
	client, err := s.client(ap.Account)
	if err != nil {
		return err
	}
	_, err = client.ServiceClient().NewContainerClient(ap.Container).NewBlockBlobClient(ap.Blob).Delete(ctx, nil)
	if err != nil {
		return mapNotFound("delete", ap, err)
	}
	return nil
}

// DeletePrefix removes every blob below a directory-like path. Blobs that
// vanish meanwhile are ignored.
func (s *Store) DeletePrefix(ctx context.Context, ap AzurePath) error {
	list, err := s.ListRecursive(ctx, ap)
	if err != nil {
		return err
	}
	for _, bm := range list {
		if err := s.Delete(ctx, ap.Child(bm.Name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func mapNotFound(op string, ap AzurePath, err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && (respErr.ErrorCode == string(bloberror.BlobNotFound) || respErr.ErrorCode == string(bloberror.ContainerNotFound)) {
		return &fs.PathError{Op: op, Path: ap.String(), Err: fs.ErrNotExist}
	}
	return err
}

// uploadBlockSize clamps the block size to the service limits. size is -1
// when unknown.
func uploadBlockSize(size int64) int64 {
	blockSize := int64(uploadBlockBase)
	if size >= 0 {
		blockSize = (size + uploadMaxBlocks - 1) / uploadMaxBlocks
	}
	return max(int64(uploadBlockMin), min(blockSize, int64(uploadBlockMax)))
}

// readerSize returns the remaining size of r if it can be learned without
// consuming it, or -1.
func readerSize(r io.Reader) int64 {
	if statter, ok := r.(interface{ Stat() (os.FileInfo, error) }); ok {
		if info, err := statter.Stat(); err == nil && info.Mode().IsRegular() {
			return info.Size()
		}
	}
	if sizer, ok := r.(interface{ Size() int64 }); ok {
		return sizer.Size()
	}
	return -1
}
