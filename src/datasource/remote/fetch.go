package remote

import (
	"TaxiGovExplorer/src/datasource/file"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-gota/gota/dataframe"
)

var ErrUnexpectedStatus = errors.New("unexpected http status")

const DefaultTimeout = 2 * time.Minute

// Fetcher downloads the published ZIP archive and loads its CSV. There are no
// retries; the next scheduled refresh is the retry.
type Fetcher struct {
	Client  *http.Client
	Options file.Options
}

func NewFetcher(timeout time.Duration, opts file.Options) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		Client:  &http.Client{Timeout: timeout},
		Options: opts,
	}
}

// Fetch returns the dataset at url with every column as strings.
func (f *Fetcher) Fetch(ctx context.Context, url string) (dataframe.DataFrame, error) {
	data, err := f.download(ctx, url)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	df, err := file.ReadZip(data, f.Options)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: %w", url, err)
	}
	return df, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("下载失败 %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	return data, nil
}
