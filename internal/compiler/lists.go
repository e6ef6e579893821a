package compiler

// Lists are the shared member lists most policy groups are built from.
type Lists struct {
	Selector []string // members of 节点选择
	Forward  []string // proxy-first policy groups
	Direct   []string // direct-first policy groups
	Fallback []string // members of 故障转移
}

// BuildLists builds the four reference lists. regionGroups must already be
// in catalog order. The insertion points of 落地节点 and 低倍率节点 are fixed:
// clients show members in this order.
func BuildLists(flags Flags, hasLowCost bool, regionGroups []string) Lists {
	var l Lists

	l.Selector = append(l.Selector, GroupFallback)
	if flags.Landing {
		l.Selector = append(l.Selector, GroupLanding)
	}
	l.Selector = append(l.Selector, regionGroups...)
	if hasLowCost {
		l.Selector = append(l.Selector, GroupLowCost)
	}
	l.Selector = append(l.Selector, GroupManual, PolicyDirect)

	l.Forward = append(l.Forward, GroupSelect)
	l.Forward = append(l.Forward, regionGroups...)
	if hasLowCost {
		l.Forward = append(l.Forward, GroupLowCost)
	}
	l.Forward = append(l.Forward, GroupManual, GroupDirect, GroupSelfHosted)

	l.Direct = append(l.Direct, GroupDirect)
	l.Direct = append(l.Direct, regionGroups...)
	if hasLowCost {
		l.Direct = append(l.Direct, GroupLowCost)
	}
	l.Direct = append(l.Direct, GroupSelect, GroupManual)

	if flags.Landing {
		l.Fallback = append(l.Fallback, GroupLanding)
	}
	l.Fallback = append(l.Fallback, regionGroups...)
	if hasLowCost {
		l.Fallback = append(l.Fallback, GroupLowCost)
	}
	l.Fallback = append(l.Fallback, GroupManual, PolicyDirect, GroupSelfHosted)

	return l
}
