package sqlinline

const QInsertFavorite = `--sql e4827073-f654-4e99-87db-c98796349591
insert into favorites (user_id, resource_id, created_at)
values ($1::uuid, $2::uuid, now())
on conflict (user_id, resource_id) do nothing;
`

const QDeleteFavorite = `--sql 7afe1f31-e9c0-4d09-8a6a-945b9e422a2b
delete from favorites
where user_id = $1::uuid and resource_id = $2::uuid;
`

const QListFavoritesByUser = `--sql a8848f53-8820-4ac3-9a30-f686fa051fa0
select
  r.id,
  r.title,
  r.author,
  r.ai_model,
  r.category,
  r.description,
  coalesce(r.original_source, ''),
  r.file_key,
  coalesce(r.avatar_key, ''),
  coalesce(r.thumbnail_key, ''),
  r.downloads,
  r.average_rating,
  r.total_ratings,
  (select count(*) from validations v where v.resource_id = r.id) as validations,
  r.uploader_id,
  r.created_at,
  r.updated_at
from favorites f
join resources r on r.id = f.resource_id
where f.user_id = $1::uuid
order by f.created_at desc;
`
