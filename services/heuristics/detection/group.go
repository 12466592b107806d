// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detection

import (
	"sort"
	"strings"
)

// Element groups returned by GroupRelatedElements.
const (
	GroupButtons    = "buttons"
	GroupInputs     = "inputs"
	GroupNavigation = "navigation"
	GroupContent    = "content"
	GroupLinks      = "links"
)

var groupByType = map[string]string{
	"button": GroupButtons,
	"submit": GroupButtons,
	"reset":  GroupButtons,

	"input":    GroupInputs,
	"textarea": GroupInputs,
	"select":   GroupInputs,

	"nav":    GroupNavigation,
	"menu":   GroupNavigation,
	"header": GroupNavigation,
	"footer": GroupNavigation,

	"a":    GroupLinks,
	"link": GroupLinks,
}

// GroupRelatedElements buckets elements by role. All five groups are
// always present; element order within a group follows the input.
// Unrecognized types land in "content".
func GroupRelatedElements(elements []UIElement) map[string][]UIElement {
	grouped := map[string][]UIElement{
		GroupButtons:    {},
		GroupInputs:     {},
		GroupNavigation: {},
		GroupContent:    {},
		GroupLinks:      {},
	}
	for _, el := range elements {
		group, ok := groupByType[strings.ToLower(el.ElementType)]
		if !ok {
			group = GroupContent
		}
		grouped[group] = append(grouped[group], el)
	}
	return grouped
}

// InterfaceSummary is the quick overview returned with an analysis.
type InterfaceSummary struct {
	TotalElements       int      `json:"total_elements"`
	InteractiveElements int      `json:"interactive_elements"`
	ElementTypes        []string `json:"element_types"`
}

// Summarize counts elements and lists distinct types in sorted order.
func Summarize(elements []UIElement) InterfaceSummary {
	types := make(map[string]struct{})
	s := InterfaceSummary{TotalElements: len(elements), ElementTypes: []string{}}
	for _, el := range elements {
		if el.Interactive {
			s.InteractiveElements++
		}
		types[el.ElementType] = struct{}{}
	}
	for t := range types {
		s.ElementTypes = append(s.ElementTypes, t)
	}
	sort.Strings(s.ElementTypes)
	return s
}
