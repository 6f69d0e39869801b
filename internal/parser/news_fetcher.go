package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"resumate-go/internal/types"

	"github.com/PuerkitoBio/goquery"
)

const googleNewsRSSFormat = "https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en"

// minHeadlineLength 过滤导航文字等噪音
const minHeadlineLength = 30

// NewsFetcher 抓取公司近期新闻，为求职信提供时事素材。
// 优先抓取公司官网/博客页面，没有URL时退回Google News RSS检索。
type NewsFetcher struct {
	httpClient *http.Client
	maxItems   int
}

// NewNewsFetcher 创建新闻抓取器
func NewNewsFetcher(timeout time.Duration, maxItems int) *NewsFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxItems <= 0 {
		maxItems = 3
	}
	return &NewsFetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxItems:   maxItems,
	}
}

// Fetch 获取公司新闻标题。companyURL为空时用companyName检索Google News。
// 抓取失败返回错误，由调用方决定是否降级为无新闻的求职信。
func (f *NewsFetcher) Fetch(ctx context.Context, companyName, companyURL string) ([]types.NewsItem, error) {
	if companyURL != "" {
		return f.fetchFromCompanyPage(ctx, companyURL)
	}
	if strings.TrimSpace(companyName) == "" {
		return nil, fmt.Errorf("公司名称和URL不能同时为空")
	}
	return f.fetchFromGoogleNews(ctx, companyName)
}

// fetchFromCompanyPage 抓取公司页面上的标题类元素
func (f *NewsFetcher) fetchFromCompanyPage(ctx context.Context, pageURL string) ([]types.NewsItem, error) {
	doc, err := f.load(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var items []types.NewsItem
	doc.Find("h1, h2, article, .post, .news").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text != "" && len(text) > minHeadlineLength {
			items = append(items, types.NewsItem{Title: text, Source: pageURL})
		}
		return len(items) < f.maxItems
	})
	return items, nil
}

// fetchFromGoogleNews 通过Google News RSS检索公司名
func (f *NewsFetcher) fetchFromGoogleNews(ctx context.Context, companyName string) ([]types.NewsItem, error) {
	rssURL := fmt.Sprintf(googleNewsRSSFormat, url.QueryEscape(companyName))
	return f.fetchFromGoogleNewsURL(ctx, rssURL)
}

func (f *NewsFetcher) fetchFromGoogleNewsURL(ctx context.Context, rssURL string) ([]types.NewsItem, error) {
	doc, err := f.load(ctx, rssURL)
	if err != nil {
		return nil, err
	}

	var items []types.NewsItem
	doc.Find("item title").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			items = append(items, types.NewsItem{Title: text, Source: "google-news"})
		}
		return len(items) < f.maxItems
	})
	return items, nil
}

func (f *NewsFetcher) load(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建新闻请求失败: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; resumate/1.0)")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("抓取新闻页面失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("新闻页面返回状态 %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("解析新闻页面失败: %w", err)
	}
	return doc, nil
}
