package models

// PlaylistExport is a playlist with its songs, as written by playlist exports.
type PlaylistExport struct {
	Playlist Playlist `json:"playlist"`
	Songs    []Song   `json:"songs"`
}

// PlaylistExportResult reports the export of one playlist.
type PlaylistExportResult struct {
	PlaylistID string   `json:"playlist_id"`
	Title      string   `json:"title"`
	Songs      int      `json:"songs"`
	Success    bool     `json:"success"`
	Files      []string `json:"files,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// BulkExportResult summarizes an export of several playlists.
type BulkExportResult struct {
	Provider          ProviderID             `json:"provider"`
	Format            string                 `json:"format"`
	TotalPlaylists    int                    `json:"total_playlists"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	OutputDirectory   string                 `json:"output_directory"`
	ManifestPath      string                 `json:"-"`
	Results           []PlaylistExportResult `json:"results"`
}
