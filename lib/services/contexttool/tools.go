/*
 * Fabric
 * Copyright (C) 2025  Capmesh, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package contexttool

import (
	"strconv"

	"github.com/gravitational/trace"
)

// Tool executes one named tool invocation. Returned outputs are keyed
// byte blobs; warnings surface to the caller without failing the call.
type Tool func(args map[string]string) (outputs map[string][]byte, warnings []string, err error)

// builtinTools is the default tool table.
func builtinTools() map[string]Tool {
	return map[string]Tool{
		"compute_pricing": computePricing,
	}
}

// computePricing derives a recommended unit price from the current stock
// count: price floors at zero and drops 0.1 per unit in stock.
func computePricing(args map[string]string) (map[string][]byte, []string, error) {
	raw, ok := args["stock_count"]
	if !ok {
		raw = "0"
	}
	stock, err := strconv.Atoi(raw)
	if err != nil {
		return nil, nil, trace.BadParameter("invalid stock_count %q", raw)
	}
	price := 100.0 - 0.1*float64(stock)
	if price < 0 {
		price = 0
	}
	return map[string][]byte{
		"recommended_price": []byte(strconv.FormatFloat(price, 'f', 1, 64)),
	}, nil, nil
}
