package export

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// LocateElement returns the serialized outer HTML of the first element in page
// whose data-testid equals testID.
func LocateElement(page []byte, testID string) (string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	node := findByTestID(doc, testID)
	if node == nil {
		return "", ErrElementNotFound
	}
	var sb strings.Builder
	if err := html.Render(&sb, node); err != nil {
		return "", fmt.Errorf("serialize element: %w", err)
	}
	return sb.String(), nil
}

func findByTestID(n *html.Node, testID string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Namespace == "" && a.Key == "data-testid" && a.Val == testID {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByTestID(c, testID); found != nil {
			return found
		}
	}
	return nil
}
