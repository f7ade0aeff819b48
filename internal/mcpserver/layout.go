package mcpserver

// OutputLayout describes the output tree and scene identifiers for LLM
// consumers reading pipeline state.
const OutputLayout = `# Time-lapse Output Layout

Every year is processed into its own directory under the output root.

## Scene identifiers

A scene id is 21 characters, e.g. ` + "`" + `LC81910562013110LGN01` + "`" + `:

| Offset | Field            | Example |
|--------|------------------|---------|
| 0      | mission          | L       |
| 1      | sensor           | C       |
| 2      | version          | 8       |
| 3-5    | WRS path         | 191     |
| 6-8    | WRS row          | 056     |
| 9-12   | year             | 2013    |
| 13-15  | day of year      | 110     |
| 16-18  | ground station   | LGN     |
| 19-20  | archive version  | 01      |

## Files in <output>/<year>/

- ` + "`" + `cutline.geojson` + "`" + `: region of interest used to crop every band.
- ` + "`" + `<id>.tar.bz` + "`" + `: raw archive (status downloaded).
- ` + "`" + `<id>_<band>.TIF` + "`" + `: extracted bands (status extracted).
- ` + "`" + `<id>_<band>-8bit.tif` + "`" + `: 8 bit copies, Landsat 8 only.
- ` + "`" + `<id>_<band>-projected.tif` + "`" + `: reprojected and cropped bands (status projected once all three exist).
- ` + "`" + `<id>_RGB-projected.tif` + "`" + `: three-band composite (status composited).
- ` + "`" + `<id>_RGB-projected.resized.tif` + "`" + `: composite resized to the year's common dimensions.
- ` + "`" + `median-out.tif` + "`" + `: per-pixel median of the resized composites.

Files prefixed with ` + "`" + `.partial-` + "`" + ` are in progress and count for nothing.

## Satellite by year

| Years       | Satellite | Vegetation bands |
|-------------|-----------|------------------|
| 2013-       | Landsat 8 | B5 B4 B3         |
| 1999-2002   | Landsat 7 | B40 B30 B20      |
| 1984-1998, 2003-2012 | Landsat 5 | B40 B30 B20 |
| 1982-1983   | Landsat 4 | B40 B30 B20      |
| 1978-1981   | Landsat 3 | B6 B5 B4         |
| 1975-1977   | Landsat 2 | B6 B5 B4         |
| before 1975 | Landsat 1 | B6 B5 B4         |

Landsat 7 years have no catalog sensor label and are skipped.
`
