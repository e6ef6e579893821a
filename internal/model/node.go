package model

// Node is one proxy endpoint as supplied by a subscription.
//
// Only Name is interpreted by the compiler. Params holds the connection
// parameters exactly as they were decoded (including "name") and is passed
// through to the rendered "proxies" section untouched.
type Node struct {
	Name   string
	Params map[string]any
}

// NodeNames returns the names of nodes in input order.
func NodeNames(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}
