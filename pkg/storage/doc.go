// Package storage owns the archive's on-disk layout.
//
// Posts live in <output>/<creator>/<post id>/, galleries and blog images in
// a subdirectory named after the content title. Next to the content a post
// directory may hold metadata.json and an .incomplete marker. Links to
// external file hosts are appended to a single crawljob batch file in the
// output directory.
//
//	store, err := storage.NewManager("downloads")
//	if err != nil {
//	    return err
//	}
//	dir, err := store.PostDirectory(post.Fanclub.CreatorName, post.ID)
//	if err != nil {
//	    return err
//	}
//	err = store.SaveMetadata(dir, post.Raw)
//
// Writes of small files go through a temporary file and a rename.
package storage
