package mcpserver

// CoordinateContract describes how positions are expressed so that LLM
// consumers send values the store accepts.
const CoordinateContract = `# Geoplan Coordinate Contract

Positions are stored resolution-independent. Pixels are only a rendering detail.

## Spaces

- **Percent space** (stored): ` + "`pos_x`" + ` and ` + "`pos_y`" + ` are 0-100, relative to the plan
  content box. 0,0 is the top-left corner, 100,100 the bottom-right.
- **Pixel space** (rendered): ` + "`x = pos_x/100 * width + origin_x`" + `, same for y with
  height and origin_y. Use ` + "`convert_coordinates`" + ` rather than computing by hand.

## Rules

1. ` + "`pos_x`" + `, ` + "`pos_y`" + `, ` + "`anchor_x`" + ` and ` + "`anchor_y`" + ` must be finite and within 0-100.
2. ` + "`anchor_x`" + ` and ` + "`anchor_y`" + ` go together. Omit both for a marker without an arrow.
3. ` + "`width`" + ` and ` + "`height`" + ` are pixels, at least 1, and do not depend on zoom.
4. Omit ` + "`position_id`" + ` to place a geo code. Pass the id returned by that call to
   move the same position. A stale id is reported as not found; nothing is written.
5. Unless the server runs in multi-instance mode a geo code has at most one position
   per plan. Placing it again moves the existing position.
6. ` + "`remove_position`" + ` is idempotent: the second call reports ` + "`success: false`" + `.

## Example

Plan 7 is 800x600 with origin 0,0. A marker drawn at pixel (400, 300):

` + "```" + `json
{"geo_code_id": 1, "plan_id": 7, "pos_x": 50, "pos_y": 50}
` + "```" + `

Moving it to pixel (200, 150) with the returned position id 12:

` + "```" + `json
{"geo_code_id": 1, "plan_id": 7, "pos_x": 25, "pos_y": 25, "position_id": 12}
` + "```" + `
`
