package ledger

import (
	"sort"

	"github.com/google/uuid"
)

// AccountNode is one account with its children in the chart of accounts
type AccountNode struct {
	Account  *Account
	Children []*AccountNode
}

// BuildChartOfAccounts arranges accounts into a forest ordered by code at every level.
// Accounts whose parent is not in the input are returned as roots.
func BuildChartOfAccounts(accounts []*Account) []*AccountNode {
	nodes := make(map[uuid.UUID]*AccountNode, len(accounts))
	for _, account := range accounts {
		nodes[account.ID] = &AccountNode{Account: account}
	}

	roots := make([]*AccountNode, 0)
	for _, account := range accounts {
		node := nodes[account.ID]
		if account.ParentID != nil && *account.ParentID != account.ID {
			if parent, ok := nodes[*account.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*AccountNode) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Account.Code < nodes[j].Account.Code
	})
	for _, node := range nodes {
		sortNodes(node.Children)
	}
}

// Walk visits the node and its descendants depth-first, passing the depth
func (n *AccountNode) Walk(fn func(node *AccountNode, depth int)) {
	n.walk(fn, 0)
}

func (n *AccountNode) walk(fn func(node *AccountNode, depth int), depth int) {
	fn(n, depth)
	for _, child := range n.Children {
		child.walk(fn, depth+1)
	}
}
